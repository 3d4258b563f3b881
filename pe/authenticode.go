// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"fmt"

	"github.com/reic/reic/internal/binparse"
	"golang.org/x/exp/slices"
)

// WIN_CERT_REVISION is an enumeration from the Windows SDK.
type WIN_CERT_REVISION uint16

const (
	WIN_CERT_REVISION_1_0 WIN_CERT_REVISION = 0x0100
	WIN_CERT_REVISION_2_0 WIN_CERT_REVISION = 0x0200
)

// WIN_CERT_TYPE is an enumeration from the Windows SDK.
type WIN_CERT_TYPE uint16

const (
	WIN_CERT_TYPE_X509             WIN_CERT_TYPE = 0x0001
	WIN_CERT_TYPE_PKCS_SIGNED_DATA WIN_CERT_TYPE = 0x0002
	WIN_CERT_TYPE_TS_STACK_SIGNED  WIN_CERT_TYPE = 0x0004
)

const sizeofWinCertificateHeader = 8

type _WIN_CERTIFICATE_HEADER struct {
	Length          uint32
	Revision        WIN_CERT_REVISION
	CertificateType WIN_CERT_TYPE
}

func (h *_WIN_CERTIFICATE_HEADER) DecodeFrom(c binparse.Cursor) (binparse.Cursor, error) {
	s := binparse.NewSeq(c)
	h.Length = binparse.Next(s, binparse.U32)
	h.Revision = binparse.Next(s, binparse.Uint[WIN_CERT_REVISION])
	h.CertificateType = binparse.Next(s, binparse.Uint[WIN_CERT_TYPE])
	return s.Done()
}

// AuthenticodeCert represents an authenticode signature that has been extracted
// from a signed PE binary but not fully parsed.
type AuthenticodeCert struct {
	header _WIN_CERTIFICATE_HEADER
	data   []byte
}

// Revision returns the revision of ac.
func (ac *AuthenticodeCert) Revision() WIN_CERT_REVISION {
	return ac.header.Revision
}

// Type returns the type of ac.
func (ac *AuthenticodeCert) Type() WIN_CERT_TYPE {
	return ac.header.CertificateType
}

// Data returns the raw bytes of ac's cert.
func (ac *AuthenticodeCert) Data() []byte {
	return ac.data
}

// AuthenticodeCerts walks the certificate table. Entries start on
// 8-byte boundaries relative to the start of the table.
func (img *Image) AuthenticodeCerts() ([]AuthenticodeCert, error) {
	if _, ok := img.dirs[IMAGE_DIRECTORY_ENTRY_SECURITY]; !ok {
		return nil, ErrNotPresent
	}
	if img.certErr != nil {
		return nil, img.certErr
	}

	var result []AuthenticodeCert
	c := binparse.NewCursor(img.certTable)
	for c.Len() >= sizeofWinCertificateHeader {
		rest, hdr, err := binparse.Decode[_WIN_CERTIFICATE_HEADER](c)
		if err != nil {
			return nil, err
		}
		if hdr.Length < sizeofWinCertificateHeader {
			return nil, fmt.Errorf("%w: certificate at 0x%X has length %d", ErrBadLength, c.Offset(), hdr.Length)
		}
		want := uint64(hdr.Length - sizeofWinCertificateHeader)
		if want > uint64(rest.Len()) {
			return nil, fmt.Errorf("%w: want %d, got %d", ErrBadLength, want, rest.Len())
		}
		rest, data, err := binparse.Take(int(want))(rest)
		if err != nil {
			return nil, err
		}
		result = append(result, AuthenticodeCert{header: hdr, data: slices.Clone(data)})

		next := alignUp(rest.Offset(), 8)
		if next >= len(img.certTable) {
			break
		}
		if c, err = rest.At(next); err != nil {
			return nil, err
		}
	}

	return result, nil
}
