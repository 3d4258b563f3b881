// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import "fmt"

// Subsystem is the environment an image expects to run in.
type Subsystem uint16

const (
	IMAGE_SUBSYSTEM_UNKNOWN                  Subsystem = 0
	IMAGE_SUBSYSTEM_NATIVE                   Subsystem = 1
	IMAGE_SUBSYSTEM_WINDOWS_GUI              Subsystem = 2
	IMAGE_SUBSYSTEM_WINDOWS_CUI              Subsystem = 3
	IMAGE_SUBSYSTEM_OS2_CUI                  Subsystem = 5
	IMAGE_SUBSYSTEM_POSIX_CUI                Subsystem = 7
	IMAGE_SUBSYSTEM_NATIVE_WINDOWS           Subsystem = 8
	IMAGE_SUBSYSTEM_WINDOWS_CE_GUI           Subsystem = 9
	IMAGE_SUBSYSTEM_EFI_APPLICATION          Subsystem = 10
	IMAGE_SUBSYSTEM_EFI_BOOT_SERVICE_DRIVER  Subsystem = 11
	IMAGE_SUBSYSTEM_EFI_RUNTIME_DRIVER       Subsystem = 12
	IMAGE_SUBSYSTEM_EFI_ROM                  Subsystem = 13
	IMAGE_SUBSYSTEM_XBOX                     Subsystem = 14
	IMAGE_SUBSYSTEM_WINDOWS_BOOT_APPLICATION Subsystem = 16
)

var subsystemNames = map[Subsystem]string{
	IMAGE_SUBSYSTEM_UNKNOWN:                  "UNKNOWN",
	IMAGE_SUBSYSTEM_NATIVE:                   "NATIVE",
	IMAGE_SUBSYSTEM_WINDOWS_GUI:              "WINDOWS_GUI",
	IMAGE_SUBSYSTEM_WINDOWS_CUI:              "WINDOWS_CUI",
	IMAGE_SUBSYSTEM_OS2_CUI:                  "OS2_CUI",
	IMAGE_SUBSYSTEM_POSIX_CUI:                "POSIX_CUI",
	IMAGE_SUBSYSTEM_NATIVE_WINDOWS:           "NATIVE_WINDOWS",
	IMAGE_SUBSYSTEM_WINDOWS_CE_GUI:           "WINDOWS_CE_GUI",
	IMAGE_SUBSYSTEM_EFI_APPLICATION:          "EFI_APPLICATION",
	IMAGE_SUBSYSTEM_EFI_BOOT_SERVICE_DRIVER:  "EFI_BOOT_SERVICE_DRIVER",
	IMAGE_SUBSYSTEM_EFI_RUNTIME_DRIVER:       "EFI_RUNTIME_DRIVER",
	IMAGE_SUBSYSTEM_EFI_ROM:                  "EFI_ROM",
	IMAGE_SUBSYSTEM_XBOX:                     "XBOX",
	IMAGE_SUBSYSTEM_WINDOWS_BOOT_APPLICATION: "WINDOWS_BOOT_APPLICATION",
}

func subsystemFromCode(v uint16) (Subsystem, error) {
	s := Subsystem(v)
	if _, ok := subsystemNames[s]; !ok {
		return 0, fmt.Errorf("unrecognized subsystem %d", v)
	}
	return s, nil
}

func (s Subsystem) String() string {
	if n, ok := subsystemNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Subsystem(%d)", uint16(s))
}
