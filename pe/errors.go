// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reic/reic/internal/binparse"
)

// Every error returned by Parse wraps exactly one of these; test with
// errors.Is.
var (
	// ErrMalformed reports a bad magic or tag, or a truncated buffer.
	ErrMalformed = binparse.ErrMalformed
	// ErrUnsupported reports a well-formed image outside this package's
	// scope: PE32+, ROM, or an unrecognized machine or subsystem code.
	ErrUnsupported = binparse.ErrUnsupported
	// ErrInconsistent reports a cross-field validation failure.
	ErrInconsistent = binparse.ErrInconsistent
	// ErrOutOfBounds reports section data declared past the end of the
	// buffer.
	ErrOutOfBounds = binparse.ErrOutOfBounds
)

var (
	ErrBadLength   = errors.New("effective length did not match expected length")
	ErrNotCodeView = errors.New("debug info is not CodeView")
	ErrNotPresent  = errors.New("not present in this PE image")
)

// Stage is a state of the image assembler. Stages are only ever
// reached in declaration order.
type Stage int

const (
	StageStart Stage = iota
	StageParsedMZ
	StageFoundPESignature
	StageParsedCOFF
	StageCheckedOptionalHeaderSize
	StageParsedOptionalHeaderStandard
	StageCheckedMagic
	StageParsedOptionalHeaderWindows
	StageCheckedAlignment
	StageParsedDataDirectories
	StageParsedSections
	StageCheckedSectionOrder
	StageAssembled
)

var stageNames = [...]string{
	StageStart:                        "Start",
	StageParsedMZ:                     "ParsedMZ",
	StageFoundPESignature:             "FoundPESignature",
	StageParsedCOFF:                   "ParsedCOFF",
	StageCheckedOptionalHeaderSize:    "CheckedOptionalHeaderSize",
	StageParsedOptionalHeaderStandard: "ParsedOptionalHeaderStandard",
	StageCheckedMagic:                 "CheckedMagic",
	StageParsedOptionalHeaderWindows:  "ParsedOptionalHeaderWindows",
	StageCheckedAlignment:             "CheckedAlignment",
	StageParsedDataDirectories:        "ParsedDataDirectories",
	StageParsedSections:               "ParsedSections",
	StageCheckedSectionOrder:          "CheckedSectionOrder",
	StageAssembled:                    "Assembled",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// ParseError describes why Parse rejected its input. Reached is the
// last stage that completed; the failure happened in the gate that
// follows it.
type ParseError struct {
	Reached Stage
	// Offset is the byte offset into the input where the failure was
	// detected.
	Offset int
	// Context names the components and fields that were being decoded,
	// outermost first.
	Context []string
	Err     error
}

func newParseError(reached Stage, err error) *ParseError {
	var be *binparse.Error
	if !errors.As(err, &be) {
		return &ParseError{Reached: reached, Err: err}
	}
	return &ParseError{
		Reached: reached,
		Offset:  be.Offset,
		Context: be.Context,
		Err:     be.Err,
	}
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("pe: ")
	for _, c := range e.Context {
		b.WriteString(c)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "at offset 0x%X: %v", e.Offset, e.Err)
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
