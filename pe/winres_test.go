// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tc-hib/winres"
)

const testManifest = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<assembly xmlns="urn:schemas-microsoft-com:asm.v1" manifestVersion="1.0">
  <assemblyIdentity type="win32" name="reic.fixture" version="1.0.0.0"/>
</assembly>
`

// TestResourceDirectoryFromLinker runs the fixture through a real
// resource writer and checks that the Resource directory it records
// resolves to the resource tree.
func TestResourceDirectoryFromLinker(t *testing.T) {
	var rs winres.ResourceSet
	require.NoError(t, rs.Set(winres.RT_MANIFEST, winres.ID(1), 0, []byte(testManifest)))

	var out bytes.Buffer
	require.NoError(t, rs.WriteToEXE(&out, bytes.NewReader(newFixture().bytes(t)), winres.ForceCheckSum()))

	img, err := Parse(out.Bytes())
	require.NoError(t, err)

	dir, ok := img.DataDirectory(IMAGE_DIRECTORY_ENTRY_RESOURCE)
	require.True(t, ok)

	rsrc, ok := img.SectionForRVA(dir.VirtualAddress)
	require.True(t, ok)
	assert.Equal(t, ".rsrc", rsrc.Name)
	assert.True(t, rsrc.Characteristics.Has(IMAGE_SCN_CNT_INITIALIZED_DATA|IMAGE_SCN_MEM_READ))

	// The root of the tree is an IMAGE_RESOURCE_DIRECTORY with one ID
	// entry, for RT_MANIFEST.
	root, err := img.ReadRVA(dir.VirtualAddress, 24)
	require.NoError(t, err)
	assert.Zero(t, binary.LittleEndian.Uint16(root[12:]), "named entries")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(root[14:]), "ID entries")
	assert.Equal(t, uint32(24), binary.LittleEndian.Uint32(root[16:]), "RT_MANIFEST")

	// Existing sections are untouched.
	text, ok := img.SectionByName(".text")
	require.True(t, ok)
	assert.Equal(t, testCode, text.Data()[:len(testCode)])
	assert.NotZero(t, img.PE32Header().Windows.CheckSum)
}
