// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package binparse is a small parser-combinator core for little-endian
// binary formats. A Parser consumes a prefix of a Cursor and returns
// the unconsumed remainder together with a value, or an *Error that
// records where and why it failed.
package binparse

import "fmt"

// Cursor is an immutable view over the complete input plus a position
// in it. Offsets reported by a Cursor are always absolute.
type Cursor struct {
	input []byte
	off   int
}

// NewCursor returns a Cursor positioned at the start of b.
func NewCursor(b []byte) Cursor {
	return Cursor{input: b}
}

// Offset returns the absolute position of c.
func (c Cursor) Offset() int {
	return c.off
}

// Len returns the number of unconsumed bytes.
func (c Cursor) Len() int {
	return len(c.input) - c.off
}

// Remaining returns the unconsumed bytes without copying them.
func (c Cursor) Remaining() []byte {
	return c.input[c.off:]
}

// Input returns the full underlying input.
func (c Cursor) Input() []byte {
	return c.input
}

// At returns a Cursor over the same input positioned at off.
func (c Cursor) At(off int) (Cursor, error) {
	if off < 0 || off > len(c.input) {
		return c, Fatal(c.off, ErrMalformed, fmt.Sprintf("offset 0x%X outside input of length 0x%X", off, len(c.input)))
	}
	return Cursor{input: c.input, off: off}, nil
}

func (c Cursor) advance(n int) Cursor {
	return Cursor{input: c.input, off: c.off + n}
}

// take splits off n bytes, failing fatally when fewer remain.
func (c Cursor) take(n int) ([]byte, Cursor, error) {
	if n < 0 || n > c.Len() {
		return nil, c, Fatal(len(c.input), ErrMalformed, fmt.Sprintf("truncated input: need %d bytes at 0x%X, have %d", n, c.off, c.Len()))
	}
	return c.input[c.off : c.off+n], c.advance(n), nil
}
