// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"fmt"

	"golang.org/x/sys/windows"
)

const maxModulePath = 32768

// OpenModule parses the file backing hmodule, a module loaded into the
// current process. hmodule must be a real module handle, not one
// returned by LoadLibraryEx with LOAD_LIBRARY_AS_DATAFILE.
func OpenModule(hmodule windows.Handle) (*Image, error) {
	buf := make([]uint16, maxModulePath)
	n, err := windows.GetModuleFileName(hmodule, &buf[0], uint32(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("GetModuleFileName: %w", err)
	}
	return Open(windows.UTF16ToString(buf[:n]))
}
