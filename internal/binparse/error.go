// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package binparse

import (
	"errors"
	"fmt"
	"strings"
)

// Failure taxonomy. Every *Error wraps exactly one of these.
var (
	ErrMalformed    = errors.New("malformed input")
	ErrUnsupported  = errors.New("unsupported input")
	ErrInconsistent = errors.New("inconsistent input")
	ErrOutOfBounds  = errors.New("out of bounds")
)

// Error is the failure produced by a Parser. Context holds the labels
// attached by Context, outermost first.
type Error struct {
	Offset  int
	Context []string
	Fatal   bool
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	for _, c := range e.Context {
		b.WriteString(c)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "at offset 0x%X: %v", e.Offset, e.Err)
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns the taxonomy sentinel wrapped by e, or nil.
func (e *Error) Kind() error {
	for _, k := range []error{ErrMalformed, ErrUnsupported, ErrInconsistent, ErrOutOfBounds} {
		if errors.Is(e.Err, k) {
			return k
		}
	}
	return nil
}

// Fail returns a recoverable error of kind at offset. detail may be
// empty.
func Fail(offset int, kind error, detail string) *Error {
	return &Error{Offset: offset, Err: withDetail(kind, detail)}
}

// Fatal is like Fail but the error aborts the whole parse.
func Fatal(offset int, kind error, detail string) *Error {
	return &Error{Offset: offset, Fatal: true, Err: withDetail(kind, detail)}
}

func withDetail(kind error, detail string) error {
	if detail == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, detail)
}

// IsFatal reports whether err is a fatal *Error.
func IsFatal(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Fatal
}

// asError converts err into an *Error, wrapping foreign errors as
// malformed input at offset.
func asError(err error, offset int) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Offset: offset, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
}
