// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/lunixbochs/struc"
)

// On-disk layouts used to assemble test images. These are written
// independently of the decoder's own types so that a field-order
// mistake in one does not hide in the other.

type testDOSHeader struct {
	Magic    [2]byte    `struc:"[2]byte"`
	Cblp     uint16     `struc:"uint16,little"`
	Cp       uint16     `struc:"uint16,little"`
	Crlc     uint16     `struc:"uint16,little"`
	Cparhdr  uint16     `struc:"uint16,little"`
	Minalloc uint16     `struc:"uint16,little"`
	Maxalloc uint16     `struc:"uint16,little"`
	Ss       uint16     `struc:"uint16,little"`
	Sp       uint16     `struc:"uint16,little"`
	Csum     uint16     `struc:"uint16,little"`
	Ip       uint16     `struc:"uint16,little"`
	Cs       uint16     `struc:"uint16,little"`
	Lfarlc   uint16     `struc:"uint16,little"`
	Ovno     uint16     `struc:"uint16,little"`
	Res      [4]uint16  `struc:"[4]uint16"`
	Oemid    uint16     `struc:"uint16,little"`
	Oeminfo  uint16     `struc:"uint16,little"`
	Res2     [10]uint16 `struc:"[10]uint16"`
	Lfanew   uint32     `struc:"uint32,little"`
}

type testFileHeader struct {
	Machine              uint16 `struc:"uint16,little"`
	NumberOfSections     uint16 `struc:"uint16,little"`
	TimeDateStamp        uint32 `struc:"uint32,little"`
	PointerToSymbolTable uint32 `struc:"uint32,little"`
	NumberOfSymbols      uint32 `struc:"uint32,little"`
	SizeOfOptionalHeader uint16 `struc:"uint16,little"`
	Characteristics      uint16 `struc:"uint16,little"`
}

type testOptionalHeader32 struct {
	Magic                       uint16 `struc:"uint16,little"`
	MajorLinkerVersion          uint8  `struc:"uint8"`
	MinorLinkerVersion          uint8  `struc:"uint8"`
	SizeOfCode                  uint32 `struc:"uint32,little"`
	SizeOfInitializedData       uint32 `struc:"uint32,little"`
	SizeOfUninitializedData     uint32 `struc:"uint32,little"`
	AddressOfEntryPoint         uint32 `struc:"uint32,little"`
	BaseOfCode                  uint32 `struc:"uint32,little"`
	BaseOfData                  uint32 `struc:"uint32,little"`
	ImageBase                   uint32 `struc:"uint32,little"`
	SectionAlignment            uint32 `struc:"uint32,little"`
	FileAlignment               uint32 `struc:"uint32,little"`
	MajorOperatingSystemVersion uint16 `struc:"uint16,little"`
	MinorOperatingSystemVersion uint16 `struc:"uint16,little"`
	MajorImageVersion           uint16 `struc:"uint16,little"`
	MinorImageVersion           uint16 `struc:"uint16,little"`
	MajorSubsystemVersion       uint16 `struc:"uint16,little"`
	MinorSubsystemVersion       uint16 `struc:"uint16,little"`
	Win32VersionValue           uint32 `struc:"uint32,little"`
	SizeOfImage                 uint32 `struc:"uint32,little"`
	SizeOfHeaders               uint32 `struc:"uint32,little"`
	CheckSum                    uint32 `struc:"uint32,little"`
	Subsystem                   uint16 `struc:"uint16,little"`
	DllCharacteristics          uint16 `struc:"uint16,little"`
	SizeOfStackReserve          uint32 `struc:"uint32,little"`
	SizeOfStackCommit           uint32 `struc:"uint32,little"`
	SizeOfHeapReserve           uint32 `struc:"uint32,little"`
	SizeOfHeapCommit            uint32 `struc:"uint32,little"`
	LoaderFlags                 uint32 `struc:"uint32,little"`
	NumberOfRvaAndSizes         uint32 `struc:"uint32,little"`
}

type testDataDirectory struct {
	VirtualAddress uint32 `struc:"uint32,little"`
	Size           uint32 `struc:"uint32,little"`
}

type testSectionHeader struct {
	Name                 [8]byte `struc:"[8]byte"`
	VirtualSize          uint32  `struc:"uint32,little"`
	VirtualAddress       uint32  `struc:"uint32,little"`
	SizeOfRawData        uint32  `struc:"uint32,little"`
	PointerToRawData     uint32  `struc:"uint32,little"`
	PointerToRelocations uint32  `struc:"uint32,little"`
	PointerToLinenumbers uint32  `struc:"uint32,little"`
	NumberOfRelocations  uint16  `struc:"uint16,little"`
	NumberOfLinenumbers  uint16  `struc:"uint16,little"`
	Characteristics      uint32  `struc:"uint32,little"`
}

func sectionName(s string) (n [8]byte) {
	copy(n[:], s)
	return n
}

// Layout of the default fixture.
const (
	testLfanew       = 0x80
	testCOFFOffset   = testLfanew + 4
	testOptOffset    = testCOFFOffset + 20
	testDirsOffset   = testOptOffset + 96
	testImageBase    = 0x00400000
	testEntryRVA     = 0x1000
	testTimeDateStmp = 0x5F5E1000
)

// testCode is "push ebp; mov ebp, esp; xor eax, eax; pop ebp; ret".
var testCode = []byte{0x55, 0x89, 0xE5, 0x31, 0xC0, 0x5D, 0xC3}

// fixture builds a small, valid PE32 image that tests then perturb.
type fixture struct {
	dos      testDOSHeader
	coff     testFileHeader
	opt      testOptionalHeader32
	dirs     []testDataDirectory
	sections []testSectionHeader
	// raw maps file offsets to bytes placed there.
	raw map[uint32][]byte
	// size is the minimum file size.
	size int
}

func newFixture() *fixture {
	f := &fixture{
		dos: testDOSHeader{Magic: [2]byte{'M', 'Z'}, Cblp: 0x90, Cp: 3, Cparhdr: 4, Maxalloc: 0xFFFF, Sp: 0xB8, Lfarlc: 0x40, Lfanew: testLfanew},
		coff: testFileHeader{
			Machine:         uint16(IMAGE_FILE_MACHINE_I386),
			TimeDateStamp:   testTimeDateStmp,
			Characteristics: uint16(IMAGE_FILE_EXECUTABLE_IMAGE | IMAGE_FILE_32BIT_MACHINE),
		},
		opt: testOptionalHeader32{
			Magic:                       uint16(OptionalHeaderMagicPE32),
			MajorLinkerVersion:          14,
			SizeOfCode:                  0x200,
			SizeOfInitializedData:       0x200,
			SizeOfUninitializedData:     0x80,
			AddressOfEntryPoint:         testEntryRVA,
			BaseOfCode:                  0x1000,
			BaseOfData:                  0x2000,
			ImageBase:                   testImageBase,
			SectionAlignment:            0x1000,
			FileAlignment:               0x200,
			MajorOperatingSystemVersion: 6,
			MajorSubsystemVersion:       6,
			SizeOfImage:                 0x4000,
			SizeOfHeaders:               0x400,
			Subsystem:                   uint16(IMAGE_SUBSYSTEM_WINDOWS_CUI),
			DllCharacteristics:          uint16(IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE | IMAGE_DLLCHARACTERISTICS_NX_COMPAT),
			SizeOfStackReserve:          0x100000,
			SizeOfStackCommit:           0x1000,
			SizeOfHeapReserve:           0x100000,
			SizeOfHeapCommit:            0x1000,
		},
		dirs: make([]testDataDirectory, 16),
		sections: []testSectionHeader{
			{
				Name:             sectionName(".text"),
				VirtualSize:      uint32(len(testCode)),
				VirtualAddress:   0x1000,
				SizeOfRawData:    0x200,
				PointerToRawData: 0x400,
				Characteristics:  uint32(IMAGE_SCN_CNT_CODE | IMAGE_SCN_MEM_EXECUTE | IMAGE_SCN_MEM_READ | IMAGE_SCN_ALIGN_16BYTES),
			},
			{
				Name:             sectionName(".data"),
				VirtualSize:      0x300,
				VirtualAddress:   0x2000,
				SizeOfRawData:    0x200,
				PointerToRawData: 0x600,
				Characteristics:  uint32(IMAGE_SCN_CNT_INITIALIZED_DATA | IMAGE_SCN_MEM_READ | IMAGE_SCN_MEM_WRITE),
			},
			{
				Name:            sectionName(".bss"),
				VirtualSize:     0x80,
				VirtualAddress:  0x3000,
				Characteristics: uint32(IMAGE_SCN_CNT_UNINITIALIZED_DATA | IMAGE_SCN_MEM_READ | IMAGE_SCN_MEM_WRITE),
			},
		},
		raw: map[uint32][]byte{
			0x400: testCode,
			0x600: []byte("hello"),
		},
		size: 0x800,
	}
	return f
}

func (f *fixture) sectionTableOffset() int {
	return testDirsOffset + 8*len(f.dirs)
}

// bytes serializes f. NumberOfSections, SizeOfOptionalHeader and
// NumberOfRvaAndSizes are derived from the section and directory slices;
// tests that need other values patch the result.
func (f *fixture) bytes(t testing.TB) []byte {
	t.Helper()

	f.coff.NumberOfSections = uint16(len(f.sections))
	f.coff.SizeOfOptionalHeader = uint16(96 + 8*len(f.dirs))
	f.opt.NumberOfRvaAndSizes = uint32(len(f.dirs))

	var buf bytes.Buffer
	opts := &struc.Options{Order: binary.LittleEndian}
	pack := func(v any) {
		if err := struc.PackWithOptions(&buf, v, opts); err != nil {
			t.Fatalf("packing %T: %v", v, err)
		}
	}

	pack(&f.dos)
	buf.Write(make([]byte, int(f.dos.Lfanew)-buf.Len()))
	buf.Write(peSignature)
	pack(&f.coff)
	pack(&f.opt)
	for i := range f.dirs {
		pack(&f.dirs[i])
	}
	for i := range f.sections {
		pack(&f.sections[i])
	}

	n := max(f.size, buf.Len())
	for off, b := range f.raw {
		n = max(n, int(off)+len(b))
	}
	out := make([]byte, n)
	copy(out, buf.Bytes())
	for off, b := range f.raw {
		copy(out[off:], b)
	}
	return out
}

func putU16(b []byte, off int, v uint16) { binary.LittleEndian.PutUint16(b[off:], v) }
func putU32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }
