// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// The dumppe command parses a PE32 file and prints what it found.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/reic/reic/analysis"
	"github.com/reic/reic/internal/log"
	"github.com/reic/reic/pe"
	"golang.org/x/arch/x86/x86asm"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var dumpHeaders bool
var dumpSections bool
var dumpDirs bool
var dumpMap bool
var dumpRaw bool
var dumpDebugInfo bool
var disasmCount int
var verbose bool

func init() {
	flag.Usage = usage
	flag.BoolVar(&dumpHeaders, "headers", false, "dump essential headers")
	flag.BoolVar(&dumpSections, "sections", false, "dump section headers")
	flag.BoolVar(&dumpDirs, "dirs", false, "dump data directories")
	flag.BoolVar(&dumpMap, "map", false, "dump the memory map")
	flag.BoolVar(&dumpRaw, "raw", false, "dump every decoded structure")
	flag.BoolVar(&dumpDebugInfo, "debuginfo", false, "dump debug info and certificates")
	flag.IntVar(&disasmCount, "disasm", 0, "disassemble `N` instructions at the entry point")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintln(flag.CommandLine.Output(), "  <filePath>\n\tpath to PE file")
}

func usageln(args ...any) {
	fmt.Fprintln(flag.CommandLine.Output(), args...)
	usage()
	os.Exit(2)
}

func usagef(format string, args ...any) {
	fmt.Fprintf(flag.CommandLine.Output(), format, args...)
	usage()
	os.Exit(2)
}

func main() {
	if verbose {
		log.SetLevelDebug()
	}

	filePath := flag.Arg(0)
	if filePath == "" {
		usageln("No file path provided")
	}
	if flag.NArg() > 1 {
		usagef("Unexpected arguments after %q: %v\n", filePath, flag.Args()[1:])
	}
	if disasmCount < 0 {
		usagef("-disasm must not be negative, got %d\n", disasmCount)
	}

	log.Log.Debug().Str("path", filePath).Msg("opening")
	img, err := pe.Open(filePath)
	if err != nil {
		logOpenError(filePath, err)
		os.Exit(1)
	}
	log.Log.Debug().
		Stringer("machine", img.COFFHeader().Machine).
		Int("sections", len(img.Sections())).
		Msg("parsed")

	if dumpHeaders {
		runDumpHeaders(img)
	}
	if dumpSections {
		runDumpSections(img)
	}
	if dumpDirs {
		runDumpDirs(img)
	}
	if dumpMap {
		runDumpMap(img)
	}
	if dumpDebugInfo {
		runDumpDebugInfo(img)
	}
	if disasmCount > 0 {
		runDisasm(img, disasmCount)
	}
	if dumpRaw {
		spew.Dump(img)
	}
}

func logOpenError(filePath string, err error) {
	var pErr *pe.ParseError
	if !errors.As(err, &pErr) {
		log.Log.Error().Err(err).Str("path", filePath).Msg("error opening file")
		return
	}
	log.Log.Error().
		Err(pErr.Err).
		Str("path", filePath).
		Stringer("stage", pErr.Reached).
		Str("offset", fmt.Sprintf("0x%X", pErr.Offset)).
		Strs("context", pErr.Context).
		Msg("parse failed")
}

func runDumpHeaders(img *pe.Image) {
	coff := img.COFFHeader()
	std := img.OptionalHeader()
	w := img.PE32Header().Windows

	fmt.Printf("COFF header:\n\n")
	fmt.Printf("  Machine:              %v\n", coff.Machine)
	fmt.Printf("  NumberOfSections:     %d\n", coff.NumberOfSections)
	fmt.Printf("  TimeDateStamp:        0x%08X (%s)\n", coff.TimeDateStamp, coff.Timestamp().UTC())
	fmt.Printf("  SizeOfOptionalHeader: %d\n", coff.SizeOfOptionalHeader)
	fmt.Printf("  Characteristics:      %v\n\n", coff.Characteristics)

	fmt.Printf("Optional header:\n\n")
	fmt.Printf("  Magic:               %v\n", std.Magic)
	fmt.Printf("  LinkerVersion:       %d.%d\n", std.MajorLinkerVersion, std.MinorLinkerVersion)
	fmt.Printf("  AddressOfEntryPoint: 0x%08X\n", std.AddressOfEntryPoint)
	fmt.Printf("  BaseOfCode:          0x%08X\n", std.BaseOfCode)
	fmt.Printf("  BaseOfData:          0x%08X\n", img.PE32Header().BaseOfData)
	fmt.Printf("  ImageBase:           0x%08X\n", w.ImageBase)
	fmt.Printf("  SectionAlignment:    0x%X\n", w.SectionAlignment)
	fmt.Printf("  FileAlignment:       0x%X\n", w.FileAlignment)
	fmt.Printf("  SizeOfImage:         0x%X\n", w.SizeOfImage)
	fmt.Printf("  SizeOfHeaders:       0x%X\n", w.SizeOfHeaders)
	fmt.Printf("  CheckSum:            0x%08X\n", w.CheckSum)
	fmt.Printf("  Subsystem:           %v\n", w.Subsystem)
	fmt.Printf("  DllCharacteristics:  %v\n", w.DllCharacteristics)
	if ep, ok := img.EntryPoint(); ok {
		fmt.Printf("  Entry point VA:      0x%08X\n", ep)
	}
	fmt.Println()
}

func runDumpSections(img *pe.Image) {
	sections := img.Sections()
	fmt.Printf("%d sections:\n\n", len(sections))
	for i, sec := range sections {
		fmt.Printf("Index %2d: %s\n", i, &sec)
	}
	fmt.Println()
}

func runDumpDirs(img *pe.Image) {
	dirs := img.DataDirectories()
	keys := maps.Keys(dirs)
	slices.Sort(keys)
	fmt.Printf("%d data directories:\n\n", len(keys))
	for _, k := range keys {
		d := dirs[k]
		fmt.Printf("  %-16v VirtualAddress=0x%08X Size=0x%X\n", k, d.VirtualAddress, d.Size)
	}
	fmt.Println()
}

func runDumpMap(img *pe.Image) {
	regions := analysis.New(img).Regions()
	fmt.Printf("%d regions:\n\n", len(regions))
	for _, r := range regions {
		fmt.Printf("  [0x%08X, 0x%08X) %-8s %v\n", r.RVA, uint64(r.RVA)+uint64(r.Length), r.Section, r.Kind)
	}
	fmt.Println()
}

func runDumpDebugInfo(img *pe.Image) {
	dirs, err := img.DebugDirectories()
	switch {
	case errors.Is(err, pe.ErrNotPresent):
		fmt.Printf("No debug directory\n\n")
	case err != nil:
		log.Log.Warn().Err(err).Msg("reading debug directory")
	default:
		fmt.Printf("%d debug directory entries:\n\n", len(dirs))
		for _, d := range dirs {
			fmt.Printf("  Type=%d SizeOfData=0x%X AddressOfRawData=0x%08X\n", d.Type, d.SizeOfData, d.AddressOfRawData)
			if d.Type != pe.IMAGE_DEBUG_TYPE_CODEVIEW {
				continue
			}
			cv, err := img.CodeViewInfo(d)
			if err != nil {
				log.Log.Warn().Err(err).Msg("reading CodeView record")
				continue
			}
			fmt.Printf("    PDB: %s\n    GUID: %v Age: %d\n    Symbol server key: %v\n", cv.PDBPath, cv.GUID, cv.Age, cv)
		}
		fmt.Println()
	}

	certs, err := img.AuthenticodeCerts()
	switch {
	case errors.Is(err, pe.ErrNotPresent):
		fmt.Printf("No certificates\n\n")
	case err != nil:
		log.Log.Warn().Err(err).Msg("reading certificate table")
	default:
		fmt.Printf("%d certificates:\n\n", len(certs))
		for _, c := range certs {
			fmt.Printf("  Revision=0x%04X Type=0x%04X Length=%d\n", c.Revision(), c.Type(), len(c.Data()))
		}
		fmt.Println()
	}
}

func runDisasm(img *pe.Image, n int) {
	if m := img.COFFHeader().Machine; m != pe.IMAGE_FILE_MACHINE_I386 {
		log.Log.Warn().Stringer("machine", m).Msg("disassembly is only available for I386 images")
		return
	}
	ep, ok := img.EntryPoint()
	if !ok {
		log.Log.Warn().Msg("image has no entry point")
		return
	}
	rva := img.OptionalHeader().AddressOfEntryPoint

	r, ok := analysis.New(img).Lookup(rva)
	if !ok || r.Data == nil {
		log.Log.Warn().Str("rva", fmt.Sprintf("0x%X", rva)).Msg("entry point is not in initialized data")
		return
	}

	code := r.Data[rva-r.RVA:]
	pc := ep
	fmt.Printf("Entry point %s+0x%X:\n\n", r.Section, rva-r.RVA)
	for i := 0; i < n && len(code) > 0; i++ {
		inst, err := x86asm.Decode(code, 32)
		if err != nil {
			fmt.Printf("  %08X  (bad) %02X\n", pc, code[0])
			code, pc = code[1:], pc+1
			continue
		}
		fmt.Printf("  %08X  % -24X %s\n", pc, code[:inst.Len], x86asm.IntelSyntax(inst, pc, nil))
		code, pc = code[inst.Len:], pc+uint64(inst.Len)
	}
	fmt.Println()
}
