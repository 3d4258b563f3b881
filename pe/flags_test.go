// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharacteristicsString(t *testing.T) {
	tests := []struct {
		c    Characteristics
		want string
	}{
		{0, "0"},
		{IMAGE_FILE_DLL, "DLL"},
		{IMAGE_FILE_EXECUTABLE_IMAGE | IMAGE_FILE_32BIT_MACHINE, "EXECUTABLE_IMAGE|32BIT_MACHINE"},
		{IMAGE_FILE_RELOCS_STRIPPED | 0x0040, "RELOCS_STRIPPED|0x40"},
	}
	for _, tc := range tests {
		if got := tc.c.String(); got != tc.want {
			t.Errorf("Characteristics(0x%X).String() = %q, want %q", uint16(tc.c), got, tc.want)
		}
	}
}

func TestFlagSetOps(t *testing.T) {
	c := IMAGE_FILE_EXECUTABLE_IMAGE.Union(IMAGE_FILE_DLL)
	assert.True(t, c.Has(IMAGE_FILE_DLL))
	assert.True(t, c.Has(IMAGE_FILE_DLL|IMAGE_FILE_EXECUTABLE_IMAGE))
	assert.False(t, c.Has(IMAGE_FILE_DLL|IMAGE_FILE_SYSTEM))
	assert.Equal(t, IMAGE_FILE_DLL, c.Intersect(IMAGE_FILE_DLL|IMAGE_FILE_SYSTEM))

	d := IMAGE_DLLCHARACTERISTICS_NX_COMPAT.Union(IMAGE_DLLCHARACTERISTICS_GUARD_CF)
	assert.Equal(t, "NX_COMPAT|GUARD_CF", d.String())
	assert.Equal(t, IMAGE_DLLCHARACTERISTICS_GUARD_CF, d.Intersect(IMAGE_DLLCHARACTERISTICS_GUARD_CF))

	s := IMAGE_SCN_MEM_READ.Union(IMAGE_SCN_MEM_WRITE)
	assert.True(t, s.Has(IMAGE_SCN_MEM_READ))
	assert.Zero(t, s.Intersect(IMAGE_SCN_MEM_EXECUTE))
}

func TestSectionAlignment(t *testing.T) {
	tests := []struct {
		c    SectionCharacteristics
		want uint32
		ok   bool
	}{
		{0, 0, false},
		{IMAGE_SCN_ALIGN_1BYTES, 1, true},
		{IMAGE_SCN_ALIGN_16BYTES | IMAGE_SCN_CNT_CODE, 16, true},
		{IMAGE_SCN_ALIGN_4096BYTES, 4096, true},
		{IMAGE_SCN_ALIGN_8192BYTES, 8192, true},
		{0x00F00000, 0, false},
	}
	for _, tc := range tests {
		got, ok := tc.c.Alignment()
		if got != tc.want || ok != tc.ok {
			t.Errorf("SectionCharacteristics(0x%08X).Alignment() = %d, %v, want %d, %v", uint32(tc.c), got, ok, tc.want, tc.ok)
		}
	}
}

func TestSectionCharacteristicsString(t *testing.T) {
	assert.Equal(t, "CNT_CODE|MEM_EXECUTE|MEM_READ|ALIGN_16BYTES",
		(IMAGE_SCN_CNT_CODE | IMAGE_SCN_MEM_EXECUTE | IMAGE_SCN_MEM_READ | IMAGE_SCN_ALIGN_16BYTES).String())
	assert.Equal(t, "ALIGN_4BYTES", IMAGE_SCN_ALIGN_4BYTES.String())
	assert.Equal(t, "MEM_WRITE|ALIGN_0xF00000", (IMAGE_SCN_MEM_WRITE | 0x00F00000).String())
	assert.Equal(t, "0", SectionCharacteristics(0).String())
}

func TestCodeTables(t *testing.T) {
	m, err := machineFromCode(0xAA64)
	assert.NoError(t, err)
	assert.Equal(t, IMAGE_FILE_MACHINE_ARM64, m)
	assert.Equal(t, "ARM64", m.String())

	_, err = machineFromCode(0x1234)
	assert.Error(t, err)
	assert.Equal(t, "Machine(0x1234)", Machine(0x1234).String())

	for _, code := range []uint16{0, 1, 2, 3, 5, 7, 8, 9, 10, 11, 12, 13, 14, 16} {
		_, err := subsystemFromCode(code)
		assert.NoError(t, err, "subsystem %d", code)
	}
	for _, code := range []uint16{4, 6, 15, 17} {
		_, err := subsystemFromCode(code)
		assert.Error(t, err, "subsystem %d", code)
	}
	assert.Equal(t, "WINDOWS_GUI", IMAGE_SUBSYSTEM_WINDOWS_GUI.String())
	assert.Equal(t, "PE32+", OptionalHeaderMagicPE32Plus.String())
}
