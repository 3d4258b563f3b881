// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import "fmt"

// Machine identifies the CPU an image targets.
type Machine uint16

const (
	IMAGE_FILE_MACHINE_UNKNOWN     Machine = 0x0000
	IMAGE_FILE_MACHINE_TARGET_HOST Machine = 0x0001
	IMAGE_FILE_MACHINE_I386        Machine = 0x014C
	IMAGE_FILE_MACHINE_R3000BE     Machine = 0x0160
	IMAGE_FILE_MACHINE_R3000       Machine = 0x0162
	IMAGE_FILE_MACHINE_R4000       Machine = 0x0166
	IMAGE_FILE_MACHINE_R10000      Machine = 0x0168
	IMAGE_FILE_MACHINE_WCEMIPSV2   Machine = 0x0169
	IMAGE_FILE_MACHINE_ALPHA       Machine = 0x0184
	IMAGE_FILE_MACHINE_SH3         Machine = 0x01A2
	IMAGE_FILE_MACHINE_SH3DSP      Machine = 0x01A3
	IMAGE_FILE_MACHINE_SH3E        Machine = 0x01A4
	IMAGE_FILE_MACHINE_SH4         Machine = 0x01A6
	IMAGE_FILE_MACHINE_SH5         Machine = 0x01A8
	IMAGE_FILE_MACHINE_ARM         Machine = 0x01C0
	IMAGE_FILE_MACHINE_THUMB       Machine = 0x01C2
	IMAGE_FILE_MACHINE_ARMNT       Machine = 0x01C4
	IMAGE_FILE_MACHINE_AM33        Machine = 0x01D3
	IMAGE_FILE_MACHINE_POWERPC     Machine = 0x01F0
	IMAGE_FILE_MACHINE_POWERPCFP   Machine = 0x01F1
	IMAGE_FILE_MACHINE_IA64        Machine = 0x0200
	IMAGE_FILE_MACHINE_MIPS16      Machine = 0x0266
	IMAGE_FILE_MACHINE_ALPHA64     Machine = 0x0284
	IMAGE_FILE_MACHINE_MIPSFPU     Machine = 0x0366
	IMAGE_FILE_MACHINE_MIPSFPU16   Machine = 0x0466
	IMAGE_FILE_MACHINE_TRICORE     Machine = 0x0520
	IMAGE_FILE_MACHINE_CEF         Machine = 0x0CEF
	IMAGE_FILE_MACHINE_EBC         Machine = 0x0EBC
	IMAGE_FILE_MACHINE_RISCV32     Machine = 0x5032
	IMAGE_FILE_MACHINE_RISCV64     Machine = 0x5064
	IMAGE_FILE_MACHINE_RISCV128    Machine = 0x5128
	IMAGE_FILE_MACHINE_AMD64       Machine = 0x8664
	IMAGE_FILE_MACHINE_M32R        Machine = 0x9041
	IMAGE_FILE_MACHINE_ARM64       Machine = 0xAA64
	IMAGE_FILE_MACHINE_CEE         Machine = 0xC0EE
)

var machineNames = map[Machine]string{
	IMAGE_FILE_MACHINE_UNKNOWN:     "UNKNOWN",
	IMAGE_FILE_MACHINE_TARGET_HOST: "TARGET_HOST",
	IMAGE_FILE_MACHINE_I386:        "I386",
	IMAGE_FILE_MACHINE_R3000BE:     "R3000BE",
	IMAGE_FILE_MACHINE_R3000:       "R3000",
	IMAGE_FILE_MACHINE_R4000:       "R4000",
	IMAGE_FILE_MACHINE_R10000:      "R10000",
	IMAGE_FILE_MACHINE_WCEMIPSV2:   "WCEMIPSV2",
	IMAGE_FILE_MACHINE_ALPHA:       "ALPHA",
	IMAGE_FILE_MACHINE_SH3:         "SH3",
	IMAGE_FILE_MACHINE_SH3DSP:      "SH3DSP",
	IMAGE_FILE_MACHINE_SH3E:        "SH3E",
	IMAGE_FILE_MACHINE_SH4:         "SH4",
	IMAGE_FILE_MACHINE_SH5:         "SH5",
	IMAGE_FILE_MACHINE_ARM:         "ARM",
	IMAGE_FILE_MACHINE_THUMB:       "THUMB",
	IMAGE_FILE_MACHINE_ARMNT:       "ARMNT",
	IMAGE_FILE_MACHINE_AM33:        "AM33",
	IMAGE_FILE_MACHINE_POWERPC:     "POWERPC",
	IMAGE_FILE_MACHINE_POWERPCFP:   "POWERPCFP",
	IMAGE_FILE_MACHINE_IA64:        "IA64",
	IMAGE_FILE_MACHINE_MIPS16:      "MIPS16",
	IMAGE_FILE_MACHINE_ALPHA64:     "ALPHA64",
	IMAGE_FILE_MACHINE_MIPSFPU:     "MIPSFPU",
	IMAGE_FILE_MACHINE_MIPSFPU16:   "MIPSFPU16",
	IMAGE_FILE_MACHINE_TRICORE:     "TRICORE",
	IMAGE_FILE_MACHINE_CEF:         "CEF",
	IMAGE_FILE_MACHINE_EBC:         "EBC",
	IMAGE_FILE_MACHINE_RISCV32:     "RISCV32",
	IMAGE_FILE_MACHINE_RISCV64:     "RISCV64",
	IMAGE_FILE_MACHINE_RISCV128:    "RISCV128",
	IMAGE_FILE_MACHINE_AMD64:       "AMD64",
	IMAGE_FILE_MACHINE_M32R:        "M32R",
	IMAGE_FILE_MACHINE_ARM64:       "ARM64",
	IMAGE_FILE_MACHINE_CEE:         "CEE",
}

func machineFromCode(v uint16) (Machine, error) {
	m := Machine(v)
	if _, ok := machineNames[m]; !ok {
		return 0, fmt.Errorf("unrecognized machine type 0x%04X", v)
	}
	return m, nil
}

func (m Machine) String() string {
	if s, ok := machineNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Machine(0x%04X)", uint16(m))
}
