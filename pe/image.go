// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package pe decodes PE32 executable images from untrusted bytes into a
// validated, immutable Image.
package pe

import (
	"fmt"

	"github.com/reic/reic/internal/binparse"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Image is a fully validated PE32 image. It holds copies of every byte
// it exposes and never refers back to the buffer it was parsed from.
type Image struct {
	mz        MZHeader
	coff      COFFHeader
	standard  OptionalHeaderStandard
	pe32      OptionalHeaderPE32
	dirs      map[DataDirectoryType]DataDirectory
	sections  []Section
	certTable []byte
	certErr   error
}

// MZHeader returns the DOS header.
func (img *Image) MZHeader() MZHeader { return img.mz }

// COFFHeader returns the COFF file header.
func (img *Image) COFFHeader() COFFHeader { return img.coff }

// OptionalHeader returns the standard optional header fields.
func (img *Image) OptionalHeader() OptionalHeaderStandard { return img.standard }

// PE32Header returns BaseOfData and the Windows-specific fields.
func (img *Image) PE32Header() OptionalHeaderPE32 { return img.pe32 }

// DataDirectories returns the non-empty data directory entries keyed by
// type.
func (img *Image) DataDirectories() map[DataDirectoryType]DataDirectory {
	return maps.Clone(img.dirs)
}

// DataDirectory returns the entry for t, if the image declares one.
func (img *Image) DataDirectory(t DataDirectoryType) (DataDirectory, bool) {
	d, ok := img.dirs[t]
	return d, ok
}

// Sections returns the sections in table order.
func (img *Image) Sections() []Section {
	return slices.Clone(img.sections)
}

// SectionByName returns the first section called name.
func (img *Image) SectionByName(name string) (Section, bool) {
	i := slices.IndexFunc(img.sections, func(s Section) bool { return s.Name == name })
	if i < 0 {
		return Section{}, false
	}
	return img.sections[i], true
}

// SectionForRVA returns the section whose loaded extent contains rva.
func (img *Image) SectionForRVA(rva uint32) (Section, bool) {
	i := slices.IndexFunc(img.sections, func(s Section) bool { return s.containsRVA(rva) })
	if i < 0 {
		return Section{}, false
	}
	return img.sections[i], true
}

// ReadRVA returns n bytes of the loaded image starting at rva. Bytes in
// a section's zero-filled tail read as zero. The range must lie within
// a single section.
func (img *Image) ReadRVA(rva uint32, n int) ([]byte, error) {
	s, ok := img.SectionForRVA(rva)
	if !ok {
		return nil, fmt.Errorf("RVA 0x%X: %w", rva, ErrNotPresent)
	}
	off := uint64(rva - s.VirtualAddress)
	if n < 0 || off+uint64(n) > uint64(s.extent) {
		return nil, fmt.Errorf("%w: reading 0x%X bytes at RVA 0x%X crosses the end of section %q", ErrOutOfBounds, n, rva, s.Name)
	}
	out := make([]byte, n)
	if off < uint64(len(s.data)) {
		copy(out, s.data[off:])
	}
	return out, nil
}

// EntryPoint returns the virtual address of the entry point at the
// preferred image base, and false when the image has none.
func (img *Image) EntryPoint() (uint64, bool) {
	if img.standard.AddressOfEntryPoint == 0 {
		return 0, false
	}
	return uint64(img.pe32.Windows.ImageBase) + uint64(img.standard.AddressOfEntryPoint), true
}

// imageParser carries state between the steps of Parse. Each step
// either advances cur and fills in part of img, or fails.
type imageParser struct {
	in  binparse.Cursor
	cur binparse.Cursor
	img Image

	coffAt    int
	optAt     int
	windowsAt int
	sectionAt int
}

// Parse decodes a PE32 image from b. Every failure is a *ParseError
// wrapping one of ErrMalformed, ErrUnsupported, ErrInconsistent or
// ErrOutOfBounds. The returned Image does not retain b.
func Parse(b []byte) (*Image, error) {
	p := &imageParser{in: binparse.NewCursor(b)}
	steps := []struct {
		run   func() error
		reach Stage
	}{
		{p.parseMZ, StageParsedMZ},
		{p.findPESignature, StageFoundPESignature},
		{p.parseCOFF, StageParsedCOFF},
		{p.checkOptionalHeaderSize, StageCheckedOptionalHeaderSize},
		{p.parseOptionalHeaderStandard, StageParsedOptionalHeaderStandard},
		{p.checkMagic, StageCheckedMagic},
		{p.parseOptionalHeaderPE32, StageParsedOptionalHeaderWindows},
		{p.checkAlignment, StageCheckedAlignment},
		{p.parseDataDirectories, StageParsedDataDirectories},
		{p.parseSections, StageParsedSections},
		{p.checkSectionOrder, StageCheckedSectionOrder},
	}
	reached := StageStart
	for _, step := range steps {
		if err := step.run(); err != nil {
			return nil, newParseError(reached, err)
		}
		reached = step.reach
	}
	p.copyCertificateTable()
	img := p.img
	return &img, nil
}

// gate fails with a fatal error of the given kind at offset at unless
// ok holds.
func gate(ok bool, at int, label string, kind error, format string, args ...any) error {
	if ok {
		return nil
	}
	e := binparse.Fatal(at, kind, fmt.Sprintf(format, args...))
	e.Context = []string{label}
	return e
}

func (p *imageParser) parseMZ() error {
	_, mz, err := binparse.Cut(parseMZHeader)(p.in)
	if err != nil {
		return err
	}
	p.img.mz = mz
	return gate(uint64(mz.Lfanew) < uint64(p.in.Len()), 0x3C, "PE header offset sanity check", ErrMalformed,
		"e_lfanew 0x%X is not inside the input of length 0x%X", mz.Lfanew, p.in.Len())
}

func (p *imageParser) findPESignature() error {
	at, err := p.in.At(int(p.img.mz.Lfanew))
	if err != nil {
		return err
	}
	rest, _, err := binparse.Context("PE signature", binparse.Cut(binparse.Tag(peSignature)))(at)
	if err != nil {
		return err
	}
	p.cur = rest
	return nil
}

func (p *imageParser) parseCOFF() error {
	p.coffAt = p.cur.Offset()
	rest, coff, err := binparse.Cut(parseCOFFHeader)(p.cur)
	if err != nil {
		return err
	}
	p.img.coff = coff
	p.cur = rest
	return nil
}

func (p *imageParser) checkOptionalHeaderSize() error {
	size := p.img.coff.SizeOfOptionalHeader
	return gate(size >= minPE32OptionalHeaderSize, p.coffAt+16, "Check size of PE32 optional header", ErrInconsistent,
		"SizeOfOptionalHeader %d is smaller than the PE32 minimum %d", size, minPE32OptionalHeaderSize)
}

func (p *imageParser) parseOptionalHeaderStandard() error {
	p.optAt = p.cur.Offset()
	rest, std, err := binparse.Cut(parseOptionalHeaderStandard)(p.cur)
	if err != nil {
		return err
	}
	p.img.standard = std
	p.cur = rest
	return nil
}

func (p *imageParser) checkMagic() error {
	m := p.img.standard.Magic
	return gate(m == OptionalHeaderMagicPE32, p.optAt, "Check if optional header specifies PE32", ErrUnsupported,
		"optional header magic is %s, only PE32 is supported", m)
}

func (p *imageParser) parseOptionalHeaderPE32() error {
	p.windowsAt = p.cur.Offset() + 4
	rest, h, err := binparse.Cut(parseOptionalHeaderPE32)(p.cur)
	if err != nil {
		return err
	}
	p.img.pe32 = h
	p.cur = rest
	return nil
}

func (p *imageParser) checkAlignment() error {
	w := &p.img.pe32.Windows
	return gate(validAlignment(w.FileAlignment, w.SectionAlignment), p.windowsAt+8, "Verify file and section alignment values", ErrInconsistent,
		"FileAlignment 0x%X must be a power of two in [0x200, 0x10000] and no larger than SectionAlignment 0x%X",
		w.FileAlignment, w.SectionAlignment)
}

var parseDataDirectory binparse.Parser[DataDirectory] = binparse.Decode[DataDirectory]

func (p *imageParser) parseDataDirectories() error {
	n := p.img.pe32.Windows.NumberOfRvaAndSizes
	rest, dirs, err := binparse.Cut(binparse.Context("Parse data directories",
		binparse.Map(binparse.Count(parseDataDirectory, n), dataDirectoryMap)))(p.cur)
	if err != nil {
		return err
	}
	p.img.dirs = dirs
	p.cur = rest
	return nil
}

func (p *imageParser) parseSections() error {
	w := &p.img.pe32.Windows
	input := p.in.Input()
	validated := binparse.Context("Validate header", verifiedSectionHeader(w.FileAlignment, w.SectionAlignment))
	materialized := binparse.Context("Get section data", binparse.MapErr(validated, ErrOutOfBounds,
		func(h SectionHeader) (Section, error) {
			return newSection(input, h)
		}))

	p.sectionAt = p.cur.Offset()
	rest, sections, err := binparse.Cut(binparse.Context("Sections",
		binparse.Count(materialized, uint32(p.img.coff.NumberOfSections))))(p.cur)
	if err != nil {
		return err
	}
	p.img.sections = sections
	p.cur = rest
	return nil
}

func (p *imageParser) checkSectionOrder() error {
	i := checkSectionOrder(p.img.sections)
	if i < 0 {
		clipImplicitExtents(p.img.sections)
		return nil
	}
	s := &p.img.sections[i]
	return gate(false, p.sectionAt+i*sizeofSectionHeader, "Verify section order", ErrInconsistent,
		"section %d %q at VirtualAddress 0x%X overlaps or precedes the previous section", i, s.Name, s.VirtualAddress)
}

// copyCertificateTable keeps the bytes the Security directory points at,
// which live outside every section. A table that does not fit in the
// input is not a parse failure; AuthenticodeCerts reports it instead.
func (p *imageParser) copyCertificateTable() {
	d, ok := p.img.dirs[IMAGE_DIRECTORY_ENTRY_SECURITY]
	if !ok {
		return
	}
	input := p.in.Input()
	start, end := uint64(d.VirtualAddress), uint64(d.VirtualAddress)+uint64(d.Size)
	if end > uint64(len(input)) {
		p.img.certErr = fmt.Errorf("%w: certificate table [0x%X, 0x%X) extends past end of input at 0x%X", ErrOutOfBounds, start, end, len(input))
		return
	}
	p.img.certTable = slices.Clone(input[start:end])
}
