// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package binparse

import (
	"bytes"
	"fmt"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// Parser consumes a prefix of a Cursor. On success it returns the
// remainder and a value; on failure it returns its input Cursor
// unchanged and an *Error.
type Parser[T any] func(Cursor) (Cursor, T, error)

// Decoder is implemented by types that know how to decode themselves
// from the front of a Cursor.
type Decoder interface {
	DecodeFrom(c Cursor) (Cursor, error)
}

// Decode adapts a Decoder into a Parser.
func Decode[T any, PT interface {
	*T
	Decoder
}](c Cursor) (Cursor, T, error) {
	var v T
	rest, err := PT(&v).DecodeFrom(c)
	if err != nil {
		var zero T
		return c, zero, err
	}
	return rest, v, nil
}

// Uint reads a little-endian unsigned integer the width of T.
func Uint[T constraints.Unsigned](c Cursor) (Cursor, T, error) {
	n := bits.Len64(uint64(^T(0))) / 8
	b, rest, err := c.take(n)
	if err != nil {
		return c, 0, err
	}
	var u uint64
	for i := n - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	return rest, T(u), nil
}

func U8(c Cursor) (Cursor, uint8, error)   { return Uint[uint8](c) }
func U16(c Cursor) (Cursor, uint16, error) { return Uint[uint16](c) }
func U32(c Cursor) (Cursor, uint32, error) { return Uint[uint32](c) }
func U64(c Cursor) (Cursor, uint64, error) { return Uint[uint64](c) }

// Bits reads an integer the width of T and keeps only the bits in
// known. It never fails on content.
func Bits[T constraints.Unsigned](known T) Parser[T] {
	return func(c Cursor) (Cursor, T, error) {
		rest, v, err := Uint[T](c)
		if err != nil {
			return c, 0, err
		}
		return rest, v & known, nil
	}
}

// Tag matches lit exactly. A mismatch is recoverable; running out of
// input before a mismatch is seen is fatal.
func Tag(lit []byte) Parser[[]byte] {
	return func(c Cursor) (Cursor, []byte, error) {
		avail := c.Remaining()
		if len(avail) > len(lit) {
			avail = avail[:len(lit)]
		}
		if !bytes.HasPrefix(lit, avail) {
			return c, nil, Fail(c.off, ErrMalformed, fmt.Sprintf("expected tag %q, found %q", lit, avail))
		}
		b, rest, err := c.take(len(lit))
		if err != nil {
			return c, nil, err
		}
		return rest, b, nil
	}
}

// Take returns the next n bytes without copying them.
func Take(n int) Parser[[]byte] {
	return func(c Cursor) (Cursor, []byte, error) {
		b, rest, err := c.take(n)
		if err != nil {
			return c, nil, err
		}
		return rest, b, nil
	}
}

// Map transforms the value produced by p.
func Map[A, B any](p Parser[A], f func(A) B) Parser[B] {
	return func(c Cursor) (Cursor, B, error) {
		rest, a, err := p(c)
		if err != nil {
			var zero B
			return c, zero, err
		}
		return rest, f(a), nil
	}
}

// MapErr transforms the value produced by p with a function that may
// reject it. A rejection is a recoverable failure of the given kind,
// reported at the offset where p started.
func MapErr[A, B any](p Parser[A], kind error, f func(A) (B, error)) Parser[B] {
	return func(c Cursor) (Cursor, B, error) {
		var zero B
		rest, a, err := p(c)
		if err != nil {
			return c, zero, err
		}
		b, err := f(a)
		if err != nil {
			return c, zero, Fail(c.off, kind, err.Error())
		}
		return rest, b, nil
	}
}

// Verify runs p and then checks its value with pred. A value that does
// not satisfy pred is a recoverable failure of the given kind.
func Verify[T any](p Parser[T], kind error, what string, pred func(T) bool) Parser[T] {
	return func(c Cursor) (Cursor, T, error) {
		rest, v, err := p(c)
		if err != nil {
			return c, v, err
		}
		if !pred(v) {
			var zero T
			return c, zero, Fail(c.off, kind, what)
		}
		return rest, v, nil
	}
}

// Context labels any failure of p. Labels accumulate outermost first.
func Context[T any](label string, p Parser[T]) Parser[T] {
	return func(c Cursor) (Cursor, T, error) {
		rest, v, err := p(c)
		if err != nil {
			e := *asError(err, c.off)
			e.Context = append([]string{label}, e.Context...)
			return c, v, &e
		}
		return rest, v, nil
	}
}

// Cut turns recoverable failures of p into fatal ones. Use it once the
// input has committed to a structure, so that no alternative is tried
// past that point.
func Cut[T any](p Parser[T]) Parser[T] {
	return func(c Cursor) (Cursor, T, error) {
		rest, v, err := p(c)
		if err != nil {
			e := *asError(err, c.off)
			e.Fatal = true
			return c, v, &e
		}
		return rest, v, nil
	}
}

// Alt returns the result of the first parser that succeeds. A fatal
// failure stops the search immediately.
func Alt[T any](ps ...Parser[T]) Parser[T] {
	return func(c Cursor) (Cursor, T, error) {
		var zero T
		var last error = Fail(c.off, ErrMalformed, "no alternative matched")
		for _, p := range ps {
			rest, v, err := p(c)
			if err == nil {
				return rest, v, nil
			}
			if IsFatal(err) {
				return c, zero, err
			}
			last = err
		}
		return c, zero, last
	}
}

// Count applies p exactly n times. n usually comes from the input, so
// the result grows as elements are decoded rather than up front.
func Count[T any](p Parser[T], n uint32) Parser[[]T] {
	return func(c Cursor) (Cursor, []T, error) {
		out := make([]T, 0, min(n, 16))
		cur := c
		for i := uint32(0); i < n; i++ {
			rest, v, err := p(cur)
			if err != nil {
				return c, nil, err
			}
			out = append(out, v)
			cur = rest
		}
		return cur, out, nil
	}
}

// Seq runs parsers one after another and remembers the first failure,
// after which every further step is skipped.
type Seq struct {
	c   Cursor
	err error
}

// NewSeq starts a sequence at c.
func NewSeq(c Cursor) *Seq {
	return &Seq{c: c}
}

// Next runs p as the next step of s.
func Next[T any](s *Seq, p Parser[T]) T {
	var zero T
	if s.err != nil {
		return zero
	}
	rest, v, err := p(s.c)
	if err != nil {
		s.err = err
		return zero
	}
	s.c = rest
	return v
}

// Done returns the remainder after the last step, or the first failure.
func (s *Seq) Done() (Cursor, error) {
	return s.c, s.err
}
