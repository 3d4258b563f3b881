// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package analysis builds views over a parsed PE image.
package analysis

import (
	"fmt"

	"github.com/reic/reic/pe"
	"golang.org/x/exp/slices"
)

// Kind classifies the contents of a Region.
type Kind int

const (
	KindCode Kind = iota
	KindInitializedData
	KindUninitializedData
)

var kindNames = map[Kind]string{
	KindCode:              "code",
	KindInitializedData:   "initialized data",
	KindUninitializedData: "uninitialized data",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Region is a contiguous run of the image's address space that is
// backed by a single section.
type Region struct {
	RVA    uint32
	Length uint32
	Kind   Kind
	// Section is the name of the backing section.
	Section string
	// Data is nil for KindUninitializedData.
	Data []byte
}

func (r *Region) contains(rva uint32) bool {
	return rva >= r.RVA && uint64(rva) < uint64(r.RVA)+uint64(r.Length)
}

// MemoryMap is the set of regions an image occupies once loaded,
// ordered by RVA.
type MemoryMap struct {
	regions []Region
}

// New builds the memory map for img. Sections in a parsed image are
// already ordered and disjoint, so the regions are too.
func New(img *pe.Image) *MemoryMap {
	mm := &MemoryMap{}
	for _, s := range img.Sections() {
		mm.addSection(&s)
	}
	return mm
}

func (mm *MemoryMap) addSection(s *pe.Section) {
	c := s.Characteristics
	if c.Has(pe.IMAGE_SCN_CNT_UNINITIALIZED_DATA) && !c.Has(pe.IMAGE_SCN_CNT_CODE) && !c.Has(pe.IMAGE_SCN_CNT_INITIALIZED_DATA) {
		if n := s.VirtualSize; n > 0 {
			mm.regions = append(mm.regions, Region{
				RVA:     s.VirtualAddress,
				Length:  n,
				Kind:    KindUninitializedData,
				Section: s.Name,
			})
		}
		return
	}

	kind := KindUninitializedData
	switch {
	case c.Has(pe.IMAGE_SCN_CNT_CODE):
		kind = KindCode
	case c.Has(pe.IMAGE_SCN_CNT_INITIALIZED_DATA):
		kind = KindInitializedData
	}

	data := s.Data()
	if ext := s.Extent(); ext < uint32(len(data)) {
		// Raw data past the extent is file alignment padding.
		data = data[:ext]
	}
	if len(data) > 0 {
		r := Region{
			RVA:     s.VirtualAddress,
			Length:  uint32(len(data)),
			Kind:    kind,
			Section: s.Name,
			Data:    data,
		}
		if kind == KindUninitializedData {
			r.Data = nil
		}
		mm.regions = append(mm.regions, r)
	}

	if tail := s.UninitializedDataSize(); tail > 0 {
		mm.regions = append(mm.regions, Region{
			RVA:     s.VirtualAddress + uint32(len(data)),
			Length:  tail,
			Kind:    KindUninitializedData,
			Section: s.Name,
		})
	}
}

// Regions returns a copy of the map's regions in RVA order.
func (mm *MemoryMap) Regions() []Region {
	return slices.Clone(mm.regions)
}

// Lookup returns the region containing rva.
func (mm *MemoryMap) Lookup(rva uint32) (Region, bool) {
	i := slices.IndexFunc(mm.regions, func(r Region) bool { return r.contains(rva) })
	if i < 0 {
		return Region{}, false
	}
	return mm.regions[i], true
}

// Bytes returns up to n bytes starting at rva. The result stops at the
// end of the region containing rva, which must hold initialized data.
func (mm *MemoryMap) Bytes(rva uint32, n int) ([]byte, error) {
	r, ok := mm.Lookup(rva)
	if !ok {
		return nil, fmt.Errorf("RVA 0x%X: %w", rva, pe.ErrNotPresent)
	}
	if r.Data == nil {
		return nil, fmt.Errorf("RVA 0x%X is in uninitialized data of %s", rva, r.Section)
	}
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}
	off := int(rva - r.RVA)
	end := len(r.Data)
	if n < end-off {
		end = off + n
	}
	return r.Data[off:end], nil
}
