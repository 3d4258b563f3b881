// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"bytes"
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"unicode/utf8"

	"github.com/reic/reic/internal/binparse"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

const sizeofSectionHeader = 40

// SectionHeader is one entry of the section table.
type SectionHeader struct {
	// Name is the section name with trailing NULs removed.
	Name string
	// VirtualSize is the size of the section when loaded. When it
	// exceeds SizeOfRawData the difference is zero-filled.
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLinenumbers uint32
	NumberOfRelocations  uint16
	NumberOfLinenumbers  uint16
	Characteristics      SectionCharacteristics
}

func decodeSectionName(raw []byte) (string, error) {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("section name % X is not valid UTF-8", raw)
	}
	return string(raw), nil
}

var (
	parseSectionName = binparse.Context("Name", binparse.Cut(
		binparse.MapErr(binparse.Take(8), ErrMalformed, decodeSectionName)))
	parseSectionCharacteristics = binparse.Context("Characteristics",
		binparse.Bits(knownSectionCharacteristics))
)

// DecodeFrom implements binparse.Decoder.
func (h *SectionHeader) DecodeFrom(c binparse.Cursor) (binparse.Cursor, error) {
	s := binparse.NewSeq(c)
	h.Name = binparse.Next(s, parseSectionName)
	h.VirtualSize = binparse.Next(s, binparse.U32)
	h.VirtualAddress = binparse.Next(s, binparse.U32)
	h.SizeOfRawData = binparse.Next(s, binparse.U32)
	h.PointerToRawData = binparse.Next(s, binparse.U32)
	h.PointerToRelocations = binparse.Next(s, binparse.U32)
	h.PointerToLinenumbers = binparse.Next(s, binparse.U32)
	h.NumberOfRelocations = binparse.Next(s, binparse.U16)
	h.NumberOfLinenumbers = binparse.Next(s, binparse.U16)
	h.Characteristics = binparse.Next(s, parseSectionCharacteristics)
	return s.Done()
}

// alignmentRule is a section header field that must be a multiple of
// one of the image's alignment values.
type alignmentRule struct {
	field     string
	alignName string
	align     uint32
	value     func(*SectionHeader) uint32
}

func sectionAlignmentRules(fileAlignment, sectionAlignment uint32) []alignmentRule {
	return []alignmentRule{
		{"VirtualAddress", "SectionAlignment", sectionAlignment, func(h *SectionHeader) uint32 { return h.VirtualAddress }},
		{"SizeOfRawData", "FileAlignment", fileAlignment, func(h *SectionHeader) uint32 { return h.SizeOfRawData }},
		{"PointerToRawData", "FileAlignment", fileAlignment, func(h *SectionHeader) uint32 { return h.PointerToRawData }},
	}
}

func (r alignmentRule) holds(h *SectionHeader) bool {
	return r.value(h)%r.align == 0
}

func (r alignmentRule) String() string {
	return fmt.Sprintf("%s is not a multiple of %s 0x%X", r.field, r.alignName, r.align)
}

// Validate checks h against the image's alignment values: the virtual
// address must be a multiple of sectionAlignment, and both the raw data
// size and pointer multiples of fileAlignment.
func (h *SectionHeader) Validate(fileAlignment, sectionAlignment uint32) error {
	if fileAlignment == 0 || sectionAlignment == 0 {
		return errors.New("zero alignment")
	}
	for _, r := range sectionAlignmentRules(fileAlignment, sectionAlignment) {
		if !r.holds(h) {
			return fmt.Errorf("section %q: %s 0x%X is not a multiple of %s 0x%X", h.Name, r.field, r.value(h), r.alignName, r.align)
		}
	}
	return nil
}

// verifiedSectionHeader decodes a section header and checks each
// alignment rule in turn. Alignments must be nonzero.
func verifiedSectionHeader(fileAlignment, sectionAlignment uint32) binparse.Parser[SectionHeader] {
	p := binparse.Context[SectionHeader]("SectionHeader", binparse.Decode[SectionHeader])
	for _, r := range sectionAlignmentRules(fileAlignment, sectionAlignment) {
		p = binparse.Verify(p, ErrInconsistent, r.String(), func(h SectionHeader) bool { return r.holds(&h) })
	}
	return p
}

// Section is a validated section header together with a private copy
// of its raw data.
type Section struct {
	SectionHeader
	data                  []byte
	uninitializedDataSize uint32
	extent                uint32
}

func newSection(input []byte, h SectionHeader) (Section, error) {
	start := uint64(h.PointerToRawData)
	end := start + uint64(h.SizeOfRawData)
	if end > uint64(len(input)) {
		return Section{}, fmt.Errorf("section %q: raw data [0x%X, 0x%X) extends past end of input at 0x%X", h.Name, start, end, len(input))
	}
	var uninit uint32
	if h.VirtualSize > h.SizeOfRawData {
		uninit = h.VirtualSize - h.SizeOfRawData
	}
	extent := h.VirtualSize
	if extent == 0 {
		// Some linkers leave VirtualSize zero; the raw size stands in.
		extent = h.SizeOfRawData
	}
	return Section{
		SectionHeader:         h,
		data:                  slices.Clone(input[start:end]),
		uninitializedDataSize: uninit,
		extent:                extent,
	}, nil
}

// Data returns a copy of the section's raw data. Its length is always
// SizeOfRawData.
func (s *Section) Data() []byte {
	return slices.Clone(s.data)
}

// UninitializedDataSize returns the number of zero bytes the loader
// appends after the raw data, VirtualSize - SizeOfRawData or zero.
func (s *Section) UninitializedDataSize() uint32 {
	return s.uninitializedDataSize
}

// Extent returns the number of bytes the section occupies once loaded.
// This is VirtualSize, or for a section with no VirtualSize, its raw
// size cut short at the start of the next section.
func (s *Section) Extent() uint32 {
	return s.extent
}

func (s *Section) containsRVA(rva uint32) bool {
	return rva >= s.VirtualAddress && uint64(rva) < uint64(s.VirtualAddress)+uint64(s.extent)
}

func (s *Section) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s VA=0x%08X VirtualSize=0x%X RawSize=0x%X Uninitialized=0x%X %s",
		s.Name, s.VirtualAddress, s.VirtualSize, s.SizeOfRawData, s.uninitializedDataSize, s.Characteristics)
	if len(s.data) > 0 {
		fmt.Fprintf(&b, " [% X", s.data[:min(len(s.data), 16)])
		if len(s.data) > 16 {
			b.WriteString(" ...")
		}
		b.WriteString("]")
	}
	return b.String()
}

// checkSectionOrder returns the index of the first section that starts
// before the end of the one preceding it, or -1.
func checkSectionOrder(sections []Section) int {
	var next uint64
	for i := range sections {
		s := &sections[i]
		if uint64(s.VirtualAddress) < next {
			return i
		}
		next = uint64(s.VirtualAddress) + uint64(s.VirtualSize)
	}
	return -1
}

// clipImplicitExtents keeps sections whose extent comes from their raw
// size from running into the next section. sections must already pass
// checkSectionOrder.
func clipImplicitExtents(sections []Section) {
	for i := 0; i+1 < len(sections); i++ {
		s, next := &sections[i], &sections[i+1]
		if s.VirtualSize != 0 {
			continue
		}
		if uint64(s.VirtualAddress)+uint64(s.extent) > uint64(next.VirtualAddress) {
			s.extent = next.VirtualAddress - s.VirtualAddress
		}
	}
}

func isPowerOfTwo[V constraints.Unsigned](v V) bool {
	return bits.OnesCount64(uint64(v)) == 1
}

func alignUp[V constraints.Integer](v V, powerOfTwo V) V {
	if v < 0 || powerOfTwo < 0 || bits.OnesCount64(uint64(powerOfTwo)) != 1 {
		panic("invalid arguments to alignUp")
	}
	return v + ((-v) & (powerOfTwo - 1))
}
