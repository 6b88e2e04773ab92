// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package parsec is a tiny parser-combinator toolkit used to build the
// ISO-8601/RFC-5322/epoch timestamp parsers precisely, the way
// internal/protocol/reader.go advances a cursor field by field through
// a binary frame — generalized here into reusable, composable,
// position-tracking combinators over strings.
package parsec

import (
	"strconv"

	"github.com/nishisan-dev/go-protocol-core/sdkerrors"
)

// Parser consumes input starting at pos and returns the position just
// past what it consumed, along with the parsed value. On failure it
// returns a *sdkerrors.ParseError or *sdkerrors.IncompleteInput.
type Parser[T any] func(input string, pos int) (int, T, error)

// Pair is the result type of Then.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Char matches exactly the byte c.
func Char(c byte) Parser[byte] {
	return func(input string, pos int) (int, byte, error) {
		if pos >= len(input) {
			return pos, 0, &sdkerrors.IncompleteInput{Pos: pos, Needed: 1}
		}
		if input[pos] != c {
			return pos, 0, sdkerrors.NewParseError(pos, "expected %q, got %q", c, input[pos])
		}
		return pos + 1, c, nil
	}
}

// Tag matches the literal string s.
func Tag(s string) Parser[string] {
	return func(input string, pos int) (int, string, error) {
		if len(input)-pos < len(s) {
			return pos, "", &sdkerrors.IncompleteInput{Pos: pos, Needed: len(s) - (len(input) - pos)}
		}
		if input[pos:pos+len(s)] != s {
			return pos, "", sdkerrors.NewParseError(pos, "expected %q", s)
		}
		return pos + len(s), s, nil
	}
}

// OneOf matches any single byte present in chars.
func OneOf(chars string) Parser[byte] {
	return func(input string, pos int) (int, byte, error) {
		if pos >= len(input) {
			return pos, 0, &sdkerrors.IncompleteInput{Pos: pos, Needed: 1}
		}
		c := input[pos]
		for i := 0; i < len(chars); i++ {
			if chars[i] == c {
				return pos + 1, c, nil
			}
		}
		return pos, 0, sdkerrors.NewParseError(pos, "expected one of %q, got %q", chars, c)
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// TakeNDigits matches exactly n decimal digits and returns them as an int.
func TakeNDigits(n int) Parser[int] {
	return func(input string, pos int) (int, int, error) {
		if len(input)-pos < n {
			return pos, 0, &sdkerrors.IncompleteInput{Pos: pos, Needed: n - (len(input) - pos)}
		}
		for i := 0; i < n; i++ {
			if !isDigit(input[pos+i]) {
				return pos, 0, sdkerrors.NewParseError(pos+i, "expected digit, got %q", input[pos+i])
			}
		}
		v, _ := strconv.Atoi(input[pos : pos+n])
		return pos + n, v, nil
	}
}

// TakeMNDigits greedily matches between m and n digits (n>=m) and
// returns them as an int.
func TakeMNDigits(m, n int) Parser[int] {
	return func(input string, pos int) (int, int, error) {
		count := 0
		for pos+count < len(input) && count < n && isDigit(input[pos+count]) {
			count++
		}
		if count < m {
			return pos, 0, &sdkerrors.IncompleteInput{Pos: pos, Needed: m - count}
		}
		v, _ := strconv.Atoi(input[pos : pos+count])
		return pos + count, v, nil
	}
}

// NDigitsInRange matches exactly n digits and requires the parsed value
// to fall within [lo, hi].
func NDigitsInRange(n, lo, hi int) Parser[int] {
	inner := TakeNDigits(n)
	return func(input string, pos int) (int, int, error) {
		newPos, v, err := inner(input, pos)
		if err != nil {
			return pos, 0, err
		}
		if v < lo || v > hi {
			return pos, 0, sdkerrors.NewParseError(pos, "value %d out of range [%d,%d]", v, lo, hi)
		}
		return newPos, v, nil
	}
}

// MNDigitsInRange matches between m and n digits and requires the
// parsed value to fall within [lo, hi].
func MNDigitsInRange(m, n, lo, hi int) Parser[int] {
	inner := TakeMNDigits(m, n)
	return func(input string, pos int) (int, int, error) {
		newPos, v, err := inner(input, pos)
		if err != nil {
			return pos, 0, err
		}
		if v < lo || v > hi {
			return pos, 0, sdkerrors.NewParseError(pos, "value %d out of range [%d,%d]", v, lo, hi)
		}
		return newPos, v, nil
	}
}

// TakeWhileMN matches between m and n bytes satisfying pred.
func TakeWhileMN(m, n int, pred func(byte) bool) Parser[string] {
	return func(input string, pos int) (int, string, error) {
		count := 0
		for pos+count < len(input) && count < n && pred(input[pos+count]) {
			count++
		}
		if count < m {
			return pos, "", sdkerrors.NewParseError(pos, "expected at least %d matching characters, got %d", m, count)
		}
		return pos + count, input[pos : pos+count], nil
	}
}

// TakeTill matches bytes up to (not including) the first byte
// satisfying pred. Fails with IncompleteInput if pred never matches
// before the input ends.
func TakeTill(pred func(byte) bool) Parser[string] {
	return func(input string, pos int) (int, string, error) {
		i := pos
		for i < len(input) && !pred(input[i]) {
			i++
		}
		if i >= len(input) {
			return pos, "", &sdkerrors.IncompleteInput{Pos: pos, Needed: 1}
		}
		return i, input[pos:i], nil
	}
}

// Fraction parses a decimal fraction (the digits after a '.') and
// reinterprets it as an integer scaled to scaleDigits (e.g. scale 9 for
// nanoseconds: "1" -> 100_000_000). Between minDigits and maxDigits
// digits are consumed; more than maxDigits is a hard failure (never
// silently truncated), matching spec §4.4's tie-break.
func Fraction(minDigits, maxDigits, scaleDigits int) Parser[int] {
	return func(input string, pos int) (int, int, error) {
		count := 0
		for pos+count < len(input) && isDigit(input[pos+count]) {
			count++
		}
		if count < minDigits {
			return pos, 0, sdkerrors.NewParseError(pos, "expected at least %d fractional digits, got %d", minDigits, count)
		}
		if count > maxDigits {
			return pos, 0, sdkerrors.NewParseError(pos+maxDigits, "too many fractional digits: at most %d supported", maxDigits)
		}
		digits := input[pos : pos+count]
		v, _ := strconv.Atoi(digits)
		for i := count; i < scaleDigits; i++ {
			v *= 10
		}
		return pos + count, v, nil
	}
}

// Optional runs p; on failure it yields the zero value without
// consuming any input or propagating the error.
func Optional[T any](p Parser[T]) Parser[*T] {
	return func(input string, pos int) (int, *T, error) {
		newPos, v, err := p(input, pos)
		if err != nil {
			return pos, nil, nil
		}
		return newPos, &v, nil
	}
}

// Alt tries each parser in order, returning the first success. If all
// fail, it returns a ParseError at pos naming "no alternatives matched".
func Alt[T any](ps ...Parser[T]) Parser[T] {
	return func(input string, pos int) (int, T, error) {
		var zero T
		for _, p := range ps {
			newPos, v, err := p(input, pos)
			if err == nil {
				return newPos, v, nil
			}
		}
		return pos, zero, sdkerrors.NewParseError(pos, "no alternatives matched")
	}
}

// Preceded runs p1, discards its result, then runs p2 and returns its result.
func Preceded[A, B any](p1 Parser[A], p2 Parser[B]) Parser[B] {
	return func(input string, pos int) (int, B, error) {
		var zero B
		newPos, _, err := p1(input, pos)
		if err != nil {
			return pos, zero, err
		}
		return p2(input, newPos)
	}
}

// Then runs p1 then p2 and returns both results as a Pair.
func Then[A, B any](p1 Parser[A], p2 Parser[B]) Parser[Pair[A, B]] {
	return func(input string, pos int) (int, Pair[A, B], error) {
		var zero Pair[A, B]
		pos1, a, err := p1(input, pos)
		if err != nil {
			return pos, zero, err
		}
		pos2, b, err := p2(input, pos1)
		if err != nil {
			return pos, zero, err
		}
		return pos2, Pair[A, B]{First: a, Second: b}, nil
	}
}

// Cond runs p only if flag is true; otherwise yields nil without
// consuming input.
func Cond[T any](flag bool, p Parser[T]) Parser[*T] {
	return func(input string, pos int) (int, *T, error) {
		if !flag {
			return pos, nil, nil
		}
		newPos, v, err := p(input, pos)
		if err != nil {
			return pos, nil, err
		}
		return newPos, &v, nil
	}
}

// Map transforms the result of p with f.
func Map[A, B any](p Parser[A], f func(A) B) Parser[B] {
	return func(input string, pos int) (int, B, error) {
		var zero B
		newPos, a, err := p(input, pos)
		if err != nil {
			return pos, zero, err
		}
		return newPos, f(a), nil
	}
}
