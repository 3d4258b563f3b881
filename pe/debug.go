// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/reic/reic/internal/binparse"
)

const sizeofDebugDirectory = 28

// IMAGE_DEBUG_TYPE_CODEVIEW identifies a DebugDirectory as pointing to
// CodeView debug information.
const IMAGE_DEBUG_TYPE_CODEVIEW = 2

// DebugDirectory describes debug information embedded in the binary.
type DebugDirectory struct {
	Characteristics  uint32
	TimeDateStamp    uint32
	MajorVersion     uint16
	MinorVersion     uint16
	Type             uint32 // an IMAGE_DEBUG_TYPE constant
	SizeOfData       uint32
	AddressOfRawData uint32
	PointerToRawData uint32
}

// DecodeFrom implements binparse.Decoder.
func (d *DebugDirectory) DecodeFrom(c binparse.Cursor) (binparse.Cursor, error) {
	s := binparse.NewSeq(c)
	d.Characteristics = binparse.Next(s, binparse.U32)
	d.TimeDateStamp = binparse.Next(s, binparse.U32)
	d.MajorVersion = binparse.Next(s, binparse.U16)
	d.MinorVersion = binparse.Next(s, binparse.U16)
	d.Type = binparse.Next(s, binparse.U32)
	d.SizeOfData = binparse.Next(s, binparse.U32)
	d.AddressOfRawData = binparse.Next(s, binparse.U32)
	d.PointerToRawData = binparse.Next(s, binparse.U32)
	return s.Done()
}

// DebugDirectories decodes the entries of the Debug data directory.
func (img *Image) DebugDirectories() ([]DebugDirectory, error) {
	dd, ok := img.dirs[IMAGE_DIRECTORY_ENTRY_DEBUG]
	if !ok {
		return nil, ErrNotPresent
	}
	b, err := img.ReadRVA(dd.VirtualAddress, int(dd.Size))
	if err != nil {
		return nil, err
	}
	count := dd.Size / sizeofDebugDirectory
	_, entries, err := binparse.Count[DebugDirectory](binparse.Decode[DebugDirectory], count)(binparse.NewCursor(b))
	if err != nil {
		return nil, fmt.Errorf("decoding debug directory: %w", err)
	}
	return entries, nil
}

// GUID is a Windows GUID in its on-disk layout.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// DecodeFrom implements binparse.Decoder.
func (g *GUID) DecodeFrom(c binparse.Cursor) (binparse.Cursor, error) {
	s := binparse.NewSeq(c)
	g.Data1 = binparse.Next(s, binparse.U32)
	g.Data2 = binparse.Next(s, binparse.U16)
	g.Data3 = binparse.Next(s, binparse.U16)
	copy(g.Data4[:], binparse.Next(s, binparse.Take(len(g.Data4))))
	return s.Done()
}

func (g GUID) String() string {
	return fmt.Sprintf("{%08X-%04X-%04X-%X-%X}", g.Data1, g.Data2, g.Data3, g.Data4[:2], g.Data4[2:])
}

var codeViewSignature = []byte("RSDS")

// CodeViewInfo contains CodeView debug information embedded in the PE
// file.
type CodeViewInfo struct {
	GUID    GUID
	Age     uint32
	PDBPath string
}

// DecodeFrom implements binparse.Decoder. The PDB path runs to the
// first NUL or the end of the record.
func (u *CodeViewInfo) DecodeFrom(c binparse.Cursor) (binparse.Cursor, error) {
	s := binparse.NewSeq(c)
	binparse.Next(s, binparse.Context("Signature", binparse.Tag(codeViewSignature)))
	u.GUID = binparse.Next[GUID](s, binparse.Decode[GUID])
	u.Age = binparse.Next(s, binparse.U32)
	rest, err := s.Done()
	if err != nil {
		return c, err
	}
	path := rest.Remaining()
	if i := bytes.IndexByte(path, 0); i >= 0 {
		path = path[:i]
	}
	u.PDBPath = string(path)
	end, err := rest.At(rest.Offset() + rest.Len())
	if err != nil {
		return c, err
	}
	return end, nil
}

// String returns the data from u formatted in the same way that Microsoft
// debugging tools and symbol servers use to identify PDB files corresponding
// to a specific binary.
func (u *CodeViewInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%08X%04X%04X", u.GUID.Data1, u.GUID.Data2, u.GUID.Data3)
	for _, v := range u.GUID.Data4 {
		fmt.Fprintf(&b, "%02X", v)
	}
	fmt.Fprintf(&b, "%X", u.Age)
	return b.String()
}

// CodeViewInfo decodes the CodeView record de points at.
func (img *Image) CodeViewInfo(de DebugDirectory) (*CodeViewInfo, error) {
	if de.Type != IMAGE_DEBUG_TYPE_CODEVIEW {
		return nil, ErrNotCodeView
	}
	if de.AddressOfRawData == 0 {
		return nil, ErrNotPresent
	}
	b, err := img.ReadRVA(de.AddressOfRawData, int(de.SizeOfData))
	if err != nil {
		return nil, err
	}
	_, cv, err := binparse.Decode[CodeViewInfo](binparse.NewCursor(b))
	if err != nil {
		return nil, fmt.Errorf("decoding CodeView record: %w", err)
	}
	return &cv, nil
}
