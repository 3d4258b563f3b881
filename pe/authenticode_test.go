// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func winCertificate(rev WIN_CERT_REVISION, typ WIN_CERT_TYPE, payload []byte) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, uint32(sizeofWinCertificateHeader+len(payload)))
	binary.Write(&b, binary.LittleEndian, rev)
	binary.Write(&b, binary.LittleEndian, typ)
	b.Write(payload)
	for b.Len()%8 != 0 {
		b.WriteByte(0)
	}
	return b.Bytes()
}

func TestAuthenticodeCerts(t *testing.T) {
	table := append(
		winCertificate(WIN_CERT_REVISION_2_0, WIN_CERT_TYPE_PKCS_SIGNED_DATA, []byte("first")),
		winCertificate(WIN_CERT_REVISION_1_0, WIN_CERT_TYPE_X509, []byte("12345678"))...,
	)
	require.Len(t, table, 32)

	f := newFixture()
	f.raw[0x800] = table
	f.dirs[IMAGE_DIRECTORY_ENTRY_SECURITY] = testDataDirectory{VirtualAddress: 0x800, Size: uint32(len(table))}
	img, err := Parse(f.bytes(t))
	require.NoError(t, err)

	certs, err := img.AuthenticodeCerts()
	require.NoError(t, err)
	require.Len(t, certs, 2)

	assert.Equal(t, WIN_CERT_REVISION_2_0, certs[0].Revision())
	assert.Equal(t, WIN_CERT_TYPE_PKCS_SIGNED_DATA, certs[0].Type())
	assert.Equal(t, []byte("first"), certs[0].Data())

	assert.Equal(t, WIN_CERT_REVISION_1_0, certs[1].Revision())
	assert.Equal(t, WIN_CERT_TYPE_X509, certs[1].Type())
	assert.Equal(t, []byte("12345678"), certs[1].Data())
}

func TestAuthenticodeCertsAbsent(t *testing.T) {
	img, err := Parse(newFixture().bytes(t))
	require.NoError(t, err)
	_, err = img.AuthenticodeCerts()
	assert.ErrorIs(t, err, ErrNotPresent)
}

func TestAuthenticodeCertsOutOfBounds(t *testing.T) {
	f := newFixture()
	f.dirs[IMAGE_DIRECTORY_ENTRY_SECURITY] = testDataDirectory{VirtualAddress: 0x7F0, Size: 0x100}
	img, err := Parse(f.bytes(t))
	require.NoError(t, err, "a bad certificate table does not fail the parse")

	_, err = img.AuthenticodeCerts()
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestAuthenticodeCertsBadLength(t *testing.T) {
	table := winCertificate(WIN_CERT_REVISION_2_0, WIN_CERT_TYPE_PKCS_SIGNED_DATA, []byte("payload"))
	binary.LittleEndian.PutUint32(table, 0x1000)

	f := newFixture()
	f.raw[0x800] = table
	f.dirs[IMAGE_DIRECTORY_ENTRY_SECURITY] = testDataDirectory{VirtualAddress: 0x800, Size: uint32(len(table))}
	img, err := Parse(f.bytes(t))
	require.NoError(t, err)

	_, err = img.AuthenticodeCerts()
	assert.ErrorIs(t, err, ErrBadLength)
}
