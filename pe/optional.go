// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"fmt"

	"github.com/reic/reic/internal/binparse"
)

// OptionalHeaderMagic identifies the optional header format.
type OptionalHeaderMagic uint16

const (
	OptionalHeaderMagicROM      OptionalHeaderMagic = 0x107
	OptionalHeaderMagicPE32     OptionalHeaderMagic = 0x10B
	OptionalHeaderMagicPE32Plus OptionalHeaderMagic = 0x20B
)

func (m OptionalHeaderMagic) String() string {
	switch m {
	case OptionalHeaderMagicROM:
		return "ROM"
	case OptionalHeaderMagicPE32:
		return "PE32"
	case OptionalHeaderMagicPE32Plus:
		return "PE32+"
	default:
		return fmt.Sprintf("OptionalHeaderMagic(0x%X)", uint16(m))
	}
}

func magicFromCode(v uint16) (OptionalHeaderMagic, error) {
	switch m := OptionalHeaderMagic(v); m {
	case OptionalHeaderMagicROM, OptionalHeaderMagicPE32, OptionalHeaderMagicPE32Plus:
		return m, nil
	default:
		return 0, fmt.Errorf("unrecognized optional header magic 0x%X", v)
	}
}

// Minimum SizeOfOptionalHeader for PE32: standard fields, BaseOfData and
// the Windows-specific fields up to LoaderFlags.
const minPE32OptionalHeaderSize = 24 + 4 + 64

// OptionalHeaderStandard holds the optional header fields common to
// every COFF image format.
type OptionalHeaderStandard struct {
	Magic                   OptionalHeaderMagic
	MajorLinkerVersion      uint8
	MinorLinkerVersion      uint8
	SizeOfCode              uint32
	SizeOfInitializedData   uint32
	SizeOfUninitializedData uint32
	// AddressOfEntryPoint is an RVA; zero when the image has no entry
	// point.
	AddressOfEntryPoint uint32
	BaseOfCode          uint32
}

var parseMagic = binparse.Context("Magic",
	binparse.MapErr[uint16, OptionalHeaderMagic](binparse.U16, ErrMalformed, magicFromCode))

// DecodeFrom implements binparse.Decoder.
func (h *OptionalHeaderStandard) DecodeFrom(c binparse.Cursor) (binparse.Cursor, error) {
	s := binparse.NewSeq(c)
	h.Magic = binparse.Next(s, parseMagic)
	h.MajorLinkerVersion = binparse.Next(s, binparse.U8)
	h.MinorLinkerVersion = binparse.Next(s, binparse.U8)
	h.SizeOfCode = binparse.Next(s, binparse.U32)
	h.SizeOfInitializedData = binparse.Next(s, binparse.U32)
	h.SizeOfUninitializedData = binparse.Next(s, binparse.U32)
	h.AddressOfEntryPoint = binparse.Next(s, binparse.U32)
	h.BaseOfCode = binparse.Next(s, binparse.U32)
	return s.Done()
}

var parseOptionalHeaderStandard = binparse.Context[OptionalHeaderStandard](
	"OptionalHeaderStandard", binparse.Decode[OptionalHeaderStandard])

// OptionalHeaderWindows holds the fields the Windows loader and linker
// need on top of the standard COFF fields.
type OptionalHeaderWindows struct {
	ImageBase        uint32
	SectionAlignment uint32
	FileAlignment    uint32

	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16

	Win32VersionValue  uint32 // reserved
	SizeOfImage        uint32
	SizeOfHeaders      uint32
	CheckSum           uint32
	Subsystem          Subsystem
	DllCharacteristics DllCharacteristics
	SizeOfStackReserve uint32
	SizeOfStackCommit  uint32
	SizeOfHeapReserve  uint32
	SizeOfHeapCommit   uint32
	LoaderFlags        uint32 // reserved
	// NumberOfRvaAndSizes is the number of data directory entries that
	// follow.
	NumberOfRvaAndSizes uint32
}

var (
	parseSubsystem = binparse.Context("Subsystem",
		binparse.MapErr[uint16, Subsystem](binparse.U16, ErrUnsupported, subsystemFromCode))
	parseDllCharacteristics = binparse.Context("DllCharacteristics",
		binparse.Bits(knownDllCharacteristics))
)

// DecodeFrom implements binparse.Decoder.
func (h *OptionalHeaderWindows) DecodeFrom(c binparse.Cursor) (binparse.Cursor, error) {
	s := binparse.NewSeq(c)
	h.ImageBase = binparse.Next(s, binparse.U32)
	h.SectionAlignment = binparse.Next(s, binparse.U32)
	h.FileAlignment = binparse.Next(s, binparse.U32)
	for _, f := range []*uint16{
		&h.MajorOperatingSystemVersion, &h.MinorOperatingSystemVersion,
		&h.MajorImageVersion, &h.MinorImageVersion,
		&h.MajorSubsystemVersion, &h.MinorSubsystemVersion,
	} {
		*f = binparse.Next(s, binparse.U16)
	}
	h.Win32VersionValue = binparse.Next(s, binparse.U32)
	h.SizeOfImage = binparse.Next(s, binparse.U32)
	h.SizeOfHeaders = binparse.Next(s, binparse.U32)
	h.CheckSum = binparse.Next(s, binparse.U32)
	h.Subsystem = binparse.Next(s, parseSubsystem)
	h.DllCharacteristics = binparse.Next(s, parseDllCharacteristics)
	h.SizeOfStackReserve = binparse.Next(s, binparse.U32)
	h.SizeOfStackCommit = binparse.Next(s, binparse.U32)
	h.SizeOfHeapReserve = binparse.Next(s, binparse.U32)
	h.SizeOfHeapCommit = binparse.Next(s, binparse.U32)
	h.LoaderFlags = binparse.Next(s, binparse.U32)
	h.NumberOfRvaAndSizes = binparse.Next(s, binparse.U32)
	return s.Done()
}

// OptionalHeaderPE32 is the PE32-specific part of the optional header.
type OptionalHeaderPE32 struct {
	BaseOfData uint32
	Windows    OptionalHeaderWindows
}

// DecodeFrom implements binparse.Decoder.
func (h *OptionalHeaderPE32) DecodeFrom(c binparse.Cursor) (binparse.Cursor, error) {
	s := binparse.NewSeq(c)
	h.BaseOfData = binparse.Next(s, binparse.U32)
	h.Windows = binparse.Next(s, binparse.Context[OptionalHeaderWindows](
		"OptionalHeaderWindows", binparse.Decode[OptionalHeaderWindows]))
	return s.Done()
}

var parseOptionalHeaderPE32 = binparse.Context[OptionalHeaderPE32](
	"OptionalHeaderPE32", binparse.Decode[OptionalHeaderPE32])

// validAlignment reports whether fileAlignment is a power of two in
// [512, 64K] and sectionAlignment is at least fileAlignment.
func validAlignment(fileAlignment, sectionAlignment uint32) bool {
	return fileAlignment >= 512 &&
		fileAlignment <= 65536 &&
		isPowerOfTwo(fileAlignment) &&
		sectionAlignment >= fileAlignment
}
