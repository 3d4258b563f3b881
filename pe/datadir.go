// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"fmt"

	"github.com/reic/reic/internal/binparse"
)

// DataDirectoryType is the index of an entry in the data directory
// table. Indices past IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR are kept as
// unknown types rather than rejected.
type DataDirectoryType uint32

const (
	IMAGE_DIRECTORY_ENTRY_EXPORT DataDirectoryType = iota
	IMAGE_DIRECTORY_ENTRY_IMPORT
	IMAGE_DIRECTORY_ENTRY_RESOURCE
	IMAGE_DIRECTORY_ENTRY_EXCEPTION
	IMAGE_DIRECTORY_ENTRY_SECURITY
	IMAGE_DIRECTORY_ENTRY_BASERELOC
	IMAGE_DIRECTORY_ENTRY_DEBUG
	IMAGE_DIRECTORY_ENTRY_ARCHITECTURE
	IMAGE_DIRECTORY_ENTRY_GLOBALPTR
	IMAGE_DIRECTORY_ENTRY_TLS
	IMAGE_DIRECTORY_ENTRY_LOAD_CONFIG
	IMAGE_DIRECTORY_ENTRY_BOUND_IMPORT
	IMAGE_DIRECTORY_ENTRY_IAT
	IMAGE_DIRECTORY_ENTRY_DELAY_IMPORT
	IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR
)

var dataDirectoryNames = [...]string{
	IMAGE_DIRECTORY_ENTRY_EXPORT:         "Export",
	IMAGE_DIRECTORY_ENTRY_IMPORT:         "Import",
	IMAGE_DIRECTORY_ENTRY_RESOURCE:       "Resource",
	IMAGE_DIRECTORY_ENTRY_EXCEPTION:      "Exception",
	IMAGE_DIRECTORY_ENTRY_SECURITY:       "Security",
	IMAGE_DIRECTORY_ENTRY_BASERELOC:      "BaseReloc",
	IMAGE_DIRECTORY_ENTRY_DEBUG:          "Debug",
	IMAGE_DIRECTORY_ENTRY_ARCHITECTURE:   "Architecture",
	IMAGE_DIRECTORY_ENTRY_GLOBALPTR:      "GlobalPtr",
	IMAGE_DIRECTORY_ENTRY_TLS:            "TLS",
	IMAGE_DIRECTORY_ENTRY_LOAD_CONFIG:    "LoadConfig",
	IMAGE_DIRECTORY_ENTRY_BOUND_IMPORT:   "BoundImport",
	IMAGE_DIRECTORY_ENTRY_IAT:            "IAT",
	IMAGE_DIRECTORY_ENTRY_DELAY_IMPORT:   "DelayImport",
	IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR: "ComDescriptor",
}

// IsKnown reports whether t is one of the IMAGE_DIRECTORY_ENTRY_*
// constants.
func (t DataDirectoryType) IsKnown() bool {
	return int(t) < len(dataDirectoryNames)
}

func (t DataDirectoryType) String() string {
	if t.IsKnown() {
		return dataDirectoryNames[t]
	}
	return fmt.Sprintf("Unknown(%d)", uint32(t))
}

// DataDirectory locates a table in the image. VirtualAddress is an RVA
// for every directory except IMAGE_DIRECTORY_ENTRY_SECURITY, where it
// is a file offset.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// DecodeFrom implements binparse.Decoder.
func (d *DataDirectory) DecodeFrom(c binparse.Cursor) (binparse.Cursor, error) {
	s := binparse.NewSeq(c)
	d.VirtualAddress = binparse.Next(s, binparse.U32)
	d.Size = binparse.Next(s, binparse.U32)
	return s.Done()
}

// dataDirectoryMap keys the entries of a decoded table by index. Empty
// entries are dropped.
func dataDirectoryMap(entries []DataDirectory) map[DataDirectoryType]DataDirectory {
	m := make(map[DataDirectoryType]DataDirectory)
	for i, d := range entries {
		if d.Size == 0 {
			continue
		}
		m[DataDirectoryType(i)] = d
	}
	return m
}
