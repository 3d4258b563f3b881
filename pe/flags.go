// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

type flagName[T constraints.Unsigned] struct {
	bit  T
	name string
}

func flagsString[T constraints.Unsigned](v T, names []flagName[T]) string {
	if v == 0 {
		return "0"
	}
	var parts []string
	for _, n := range names {
		if v&n.bit != 0 {
			parts = append(parts, n.name)
			v &^= n.bit
		}
	}
	if v != 0 {
		parts = append(parts, fmt.Sprintf("0x%X", uint64(v)))
	}
	return strings.Join(parts, "|")
}

func allFlags[T constraints.Unsigned](names []flagName[T]) (mask T) {
	for _, n := range names {
		mask |= n.bit
	}
	return mask
}

// Characteristics is the COFF file header flag set.
type Characteristics uint16

const (
	IMAGE_FILE_RELOCS_STRIPPED         Characteristics = 0x0001
	IMAGE_FILE_EXECUTABLE_IMAGE        Characteristics = 0x0002
	IMAGE_FILE_LINE_NUMS_STRIPPED      Characteristics = 0x0004
	IMAGE_FILE_LOCAL_SYMS_STRIPPED     Characteristics = 0x0008
	IMAGE_FILE_AGGRESSIVE_WS_TRIM      Characteristics = 0x0010
	IMAGE_FILE_LARGE_ADDRESS_AWARE     Characteristics = 0x0020
	IMAGE_FILE_BYTES_REVERSED_LO       Characteristics = 0x0080
	IMAGE_FILE_32BIT_MACHINE           Characteristics = 0x0100
	IMAGE_FILE_DEBUG_STRIPPED          Characteristics = 0x0200
	IMAGE_FILE_REMOVABLE_RUN_FROM_SWAP Characteristics = 0x0400
	IMAGE_FILE_NET_RUN_FROM_SWAP       Characteristics = 0x0800
	IMAGE_FILE_SYSTEM                  Characteristics = 0x1000
	IMAGE_FILE_DLL                     Characteristics = 0x2000
	IMAGE_FILE_UP_SYSTEM_ONLY          Characteristics = 0x4000
	IMAGE_FILE_BYTES_REVERSED_HI       Characteristics = 0x8000
)

var characteristicsNames = []flagName[Characteristics]{
	{IMAGE_FILE_RELOCS_STRIPPED, "RELOCS_STRIPPED"},
	{IMAGE_FILE_EXECUTABLE_IMAGE, "EXECUTABLE_IMAGE"},
	{IMAGE_FILE_LINE_NUMS_STRIPPED, "LINE_NUMS_STRIPPED"},
	{IMAGE_FILE_LOCAL_SYMS_STRIPPED, "LOCAL_SYMS_STRIPPED"},
	{IMAGE_FILE_AGGRESSIVE_WS_TRIM, "AGGRESSIVE_WS_TRIM"},
	{IMAGE_FILE_LARGE_ADDRESS_AWARE, "LARGE_ADDRESS_AWARE"},
	{IMAGE_FILE_BYTES_REVERSED_LO, "BYTES_REVERSED_LO"},
	{IMAGE_FILE_32BIT_MACHINE, "32BIT_MACHINE"},
	{IMAGE_FILE_DEBUG_STRIPPED, "DEBUG_STRIPPED"},
	{IMAGE_FILE_REMOVABLE_RUN_FROM_SWAP, "REMOVABLE_RUN_FROM_SWAP"},
	{IMAGE_FILE_NET_RUN_FROM_SWAP, "NET_RUN_FROM_SWAP"},
	{IMAGE_FILE_SYSTEM, "SYSTEM"},
	{IMAGE_FILE_DLL, "DLL"},
	{IMAGE_FILE_UP_SYSTEM_ONLY, "UP_SYSTEM_ONLY"},
	{IMAGE_FILE_BYTES_REVERSED_HI, "BYTES_REVERSED_HI"},
}

var knownCharacteristics = allFlags(characteristicsNames)

// Has reports whether every flag in f is set in c.
func (c Characteristics) Has(f Characteristics) bool { return c&f == f }

func (c Characteristics) Union(o Characteristics) Characteristics     { return c | o }
func (c Characteristics) Intersect(o Characteristics) Characteristics { return c & o }
func (c Characteristics) String() string                              { return flagsString(c, characteristicsNames) }

// DllCharacteristics is the optional header DLL flag set.
type DllCharacteristics uint16

const (
	IMAGE_DLLCHARACTERISTICS_HIGH_ENTROPY_VA       DllCharacteristics = 0x0020
	IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE          DllCharacteristics = 0x0040
	IMAGE_DLLCHARACTERISTICS_FORCE_INTEGRITY       DllCharacteristics = 0x0080
	IMAGE_DLLCHARACTERISTICS_NX_COMPAT             DllCharacteristics = 0x0100
	IMAGE_DLLCHARACTERISTICS_NO_ISOLATION          DllCharacteristics = 0x0200
	IMAGE_DLLCHARACTERISTICS_NO_SEH                DllCharacteristics = 0x0400
	IMAGE_DLLCHARACTERISTICS_NO_BIND               DllCharacteristics = 0x0800
	IMAGE_DLLCHARACTERISTICS_APPCONTAINER          DllCharacteristics = 0x1000
	IMAGE_DLLCHARACTERISTICS_WDM_DRIVER            DllCharacteristics = 0x2000
	IMAGE_DLLCHARACTERISTICS_GUARD_CF              DllCharacteristics = 0x4000
	IMAGE_DLLCHARACTERISTICS_TERMINAL_SERVER_AWARE DllCharacteristics = 0x8000
)

var dllCharacteristicsNames = []flagName[DllCharacteristics]{
	{IMAGE_DLLCHARACTERISTICS_HIGH_ENTROPY_VA, "HIGH_ENTROPY_VA"},
	{IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE, "DYNAMIC_BASE"},
	{IMAGE_DLLCHARACTERISTICS_FORCE_INTEGRITY, "FORCE_INTEGRITY"},
	{IMAGE_DLLCHARACTERISTICS_NX_COMPAT, "NX_COMPAT"},
	{IMAGE_DLLCHARACTERISTICS_NO_ISOLATION, "NO_ISOLATION"},
	{IMAGE_DLLCHARACTERISTICS_NO_SEH, "NO_SEH"},
	{IMAGE_DLLCHARACTERISTICS_NO_BIND, "NO_BIND"},
	{IMAGE_DLLCHARACTERISTICS_APPCONTAINER, "APPCONTAINER"},
	{IMAGE_DLLCHARACTERISTICS_WDM_DRIVER, "WDM_DRIVER"},
	{IMAGE_DLLCHARACTERISTICS_GUARD_CF, "GUARD_CF"},
	{IMAGE_DLLCHARACTERISTICS_TERMINAL_SERVER_AWARE, "TERMINAL_SERVER_AWARE"},
}

var knownDllCharacteristics = allFlags(dllCharacteristicsNames)

func (c DllCharacteristics) Has(f DllCharacteristics) bool { return c&f == f }

func (c DllCharacteristics) Union(o DllCharacteristics) DllCharacteristics     { return c | o }
func (c DllCharacteristics) Intersect(o DllCharacteristics) DllCharacteristics { return c & o }
func (c DllCharacteristics) String() string                                    { return flagsString(c, dllCharacteristicsNames) }

// SectionCharacteristics is the section header flag set. Bits 20-23
// hold an alignment code rather than independent flags; see Alignment.
type SectionCharacteristics uint32

const (
	IMAGE_SCN_TYPE_NO_PAD            SectionCharacteristics = 0x00000008
	IMAGE_SCN_CNT_CODE               SectionCharacteristics = 0x00000020
	IMAGE_SCN_CNT_INITIALIZED_DATA   SectionCharacteristics = 0x00000040
	IMAGE_SCN_CNT_UNINITIALIZED_DATA SectionCharacteristics = 0x00000080
	IMAGE_SCN_LNK_OTHER              SectionCharacteristics = 0x00000100
	IMAGE_SCN_LNK_INFO               SectionCharacteristics = 0x00000200
	IMAGE_SCN_LNK_REMOVE             SectionCharacteristics = 0x00000800
	IMAGE_SCN_LNK_COMDAT             SectionCharacteristics = 0x00001000
	IMAGE_SCN_GPREL                  SectionCharacteristics = 0x00008000
	IMAGE_SCN_MEM_PURGEABLE          SectionCharacteristics = 0x00020000
	IMAGE_SCN_MEM_16BIT              SectionCharacteristics = 0x00020000
	IMAGE_SCN_MEM_LOCKED             SectionCharacteristics = 0x00040000
	IMAGE_SCN_MEM_PRELOAD            SectionCharacteristics = 0x00080000
	IMAGE_SCN_ALIGN_1BYTES           SectionCharacteristics = 0x00100000
	IMAGE_SCN_ALIGN_2BYTES           SectionCharacteristics = 0x00200000
	IMAGE_SCN_ALIGN_4BYTES           SectionCharacteristics = 0x00300000
	IMAGE_SCN_ALIGN_8BYTES           SectionCharacteristics = 0x00400000
	IMAGE_SCN_ALIGN_16BYTES          SectionCharacteristics = 0x00500000
	IMAGE_SCN_ALIGN_32BYTES          SectionCharacteristics = 0x00600000
	IMAGE_SCN_ALIGN_64BYTES          SectionCharacteristics = 0x00700000
	IMAGE_SCN_ALIGN_128BYTES         SectionCharacteristics = 0x00800000
	IMAGE_SCN_ALIGN_256BYTES         SectionCharacteristics = 0x00900000
	IMAGE_SCN_ALIGN_512BYTES         SectionCharacteristics = 0x00A00000
	IMAGE_SCN_ALIGN_1024BYTES        SectionCharacteristics = 0x00B00000
	IMAGE_SCN_ALIGN_2048BYTES        SectionCharacteristics = 0x00C00000
	IMAGE_SCN_ALIGN_4096BYTES        SectionCharacteristics = 0x00D00000
	IMAGE_SCN_ALIGN_8192BYTES        SectionCharacteristics = 0x00E00000
	IMAGE_SCN_LNK_NRELOC_OVFL        SectionCharacteristics = 0x01000000
	IMAGE_SCN_MEM_DISCARDABLE        SectionCharacteristics = 0x02000000
	IMAGE_SCN_MEM_NOT_CACHED         SectionCharacteristics = 0x04000000
	IMAGE_SCN_MEM_NOT_PAGED          SectionCharacteristics = 0x08000000
	IMAGE_SCN_MEM_SHARED             SectionCharacteristics = 0x10000000
	IMAGE_SCN_MEM_EXECUTE            SectionCharacteristics = 0x20000000
	IMAGE_SCN_MEM_READ               SectionCharacteristics = 0x40000000
	IMAGE_SCN_MEM_WRITE              SectionCharacteristics = 0x80000000

	imageSCNAlignMask  SectionCharacteristics = 0x00F00000
	imageSCNAlignShift                        = 20
)

var sectionCharacteristicsNames = []flagName[SectionCharacteristics]{
	{IMAGE_SCN_TYPE_NO_PAD, "TYPE_NO_PAD"},
	{IMAGE_SCN_CNT_CODE, "CNT_CODE"},
	{IMAGE_SCN_CNT_INITIALIZED_DATA, "CNT_INITIALIZED_DATA"},
	{IMAGE_SCN_CNT_UNINITIALIZED_DATA, "CNT_UNINITIALIZED_DATA"},
	{IMAGE_SCN_LNK_OTHER, "LNK_OTHER"},
	{IMAGE_SCN_LNK_INFO, "LNK_INFO"},
	{IMAGE_SCN_LNK_REMOVE, "LNK_REMOVE"},
	{IMAGE_SCN_LNK_COMDAT, "LNK_COMDAT"},
	{IMAGE_SCN_GPREL, "GPREL"},
	{IMAGE_SCN_MEM_PURGEABLE, "MEM_PURGEABLE"},
	{IMAGE_SCN_MEM_LOCKED, "MEM_LOCKED"},
	{IMAGE_SCN_MEM_PRELOAD, "MEM_PRELOAD"},
	{IMAGE_SCN_LNK_NRELOC_OVFL, "LNK_NRELOC_OVFL"},
	{IMAGE_SCN_MEM_DISCARDABLE, "MEM_DISCARDABLE"},
	{IMAGE_SCN_MEM_NOT_CACHED, "MEM_NOT_CACHED"},
	{IMAGE_SCN_MEM_NOT_PAGED, "MEM_NOT_PAGED"},
	{IMAGE_SCN_MEM_SHARED, "MEM_SHARED"},
	{IMAGE_SCN_MEM_EXECUTE, "MEM_EXECUTE"},
	{IMAGE_SCN_MEM_READ, "MEM_READ"},
	{IMAGE_SCN_MEM_WRITE, "MEM_WRITE"},
}

var knownSectionCharacteristics = allFlags(sectionCharacteristicsNames) | imageSCNAlignMask

func (c SectionCharacteristics) Has(f SectionCharacteristics) bool { return c&f == f }

func (c SectionCharacteristics) Union(o SectionCharacteristics) SectionCharacteristics {
	return c | o
}

func (c SectionCharacteristics) Intersect(o SectionCharacteristics) SectionCharacteristics {
	return c & o
}

// Alignment decodes the alignment sub-field. ok is false when the
// field is zero or holds the undefined code 0xF.
func (c SectionCharacteristics) Alignment() (n uint32, ok bool) {
	code := uint32(c&imageSCNAlignMask) >> imageSCNAlignShift
	if code == 0 || code > 14 {
		return 0, false
	}
	return 1 << (code - 1), true
}

func (c SectionCharacteristics) String() string {
	s := flagsString(c&^imageSCNAlignMask, sectionCharacteristicsNames)
	if c&imageSCNAlignMask == 0 {
		return s
	}
	align := fmt.Sprintf("ALIGN_0x%X", uint32(c&imageSCNAlignMask))
	if n, ok := c.Alignment(); ok {
		align = fmt.Sprintf("ALIGN_%dBYTES", n)
	}
	if s == "0" {
		return align
	}
	return s + "|" + align
}
