// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import "github.com/reic/reic/internal/binparse"

var mzSignature = []byte("MZ")

// MZHeader is the legacy DOS header at the start of every image. Only
// Lfanew matters to a PE loader; the rest is kept for inspection.
type MZHeader struct {
	Cblp     uint16 // bytes on last page
	Cp       uint16 // pages in file
	Crlc     uint16 // relocations
	Cparhdr  uint16 // header size in paragraphs
	Minalloc uint16
	Maxalloc uint16
	Ss       uint16
	Sp       uint16
	Csum     uint16
	Ip       uint16
	Cs       uint16
	Lfarlc   uint16 // file address of relocation table
	Ovno     uint16 // overlay number
	Res      [4]uint16
	Oemid    uint16
	Oeminfo  uint16
	Res2     [10]uint16
	// Lfanew is the file offset of the "PE\0\0" signature.
	Lfanew uint32
}

// DecodeFrom implements binparse.Decoder.
func (h *MZHeader) DecodeFrom(c binparse.Cursor) (binparse.Cursor, error) {
	s := binparse.NewSeq(c)
	binparse.Next(s, binparse.Context("Signature", binparse.Cut(binparse.Tag(mzSignature))))
	for _, f := range []*uint16{
		&h.Cblp, &h.Cp, &h.Crlc, &h.Cparhdr, &h.Minalloc, &h.Maxalloc,
		&h.Ss, &h.Sp, &h.Csum, &h.Ip, &h.Cs, &h.Lfarlc, &h.Ovno,
	} {
		*f = binparse.Next(s, binparse.U16)
	}
	copy(h.Res[:], binparse.Next(s, binparse.Count(binparse.U16, uint32(len(h.Res)))))
	h.Oemid = binparse.Next(s, binparse.U16)
	h.Oeminfo = binparse.Next(s, binparse.U16)
	copy(h.Res2[:], binparse.Next(s, binparse.Count(binparse.U16, uint32(len(h.Res2)))))
	h.Lfanew = binparse.Next(s, binparse.U32)
	return s.Done()
}

var parseMZHeader = binparse.Context[MZHeader]("MZHeader", binparse.Decode[MZHeader])
