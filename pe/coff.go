// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"time"

	"github.com/reic/reic/internal/binparse"
)

var peSignature = []byte("PE\x00\x00")

// COFFHeader is the file header that follows the "PE\0\0" signature.
type COFFHeader struct {
	Machine              Machine
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32 // deprecated; zero in images
	NumberOfSymbols      uint32 // deprecated; zero in images
	SizeOfOptionalHeader uint16
	Characteristics      Characteristics
}

// Timestamp returns TimeDateStamp as a UTC time.
func (h *COFFHeader) Timestamp() time.Time {
	return time.Unix(int64(h.TimeDateStamp), 0).UTC()
}

var (
	parseMachine = binparse.Context("Machine",
		binparse.MapErr[uint16, Machine](binparse.U16, ErrUnsupported, machineFromCode))
	parseCharacteristics = binparse.Context("Characteristics",
		binparse.Bits(knownCharacteristics))
)

// DecodeFrom implements binparse.Decoder.
func (h *COFFHeader) DecodeFrom(c binparse.Cursor) (binparse.Cursor, error) {
	s := binparse.NewSeq(c)
	h.Machine = binparse.Next(s, parseMachine)
	h.NumberOfSections = binparse.Next(s, binparse.U16)
	h.TimeDateStamp = binparse.Next(s, binparse.U32)
	h.PointerToSymbolTable = binparse.Next(s, binparse.U32)
	h.NumberOfSymbols = binparse.Next(s, binparse.U32)
	h.SizeOfOptionalHeader = binparse.Next(s, binparse.U16)
	h.Characteristics = binparse.Next(s, parseCharacteristics)
	return s.Done()
}

var parseCOFFHeader = binparse.Context[COFFHeader]("COFFHeader", binparse.Decode[COFFHeader])
