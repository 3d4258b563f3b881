// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Open maps the file at name read-only and parses it. The mapping is
// released before Open returns; the Image holds its own copies.
func Open(name string) (*Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		// Zero-length files cannot be mapped.
		return Parse(nil)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", name, err)
	}
	defer m.Unmap()

	return Parse(m)
}
