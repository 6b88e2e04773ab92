// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package parsec

import (
	"errors"
	"testing"

	"github.com/nishisan-dev/go-protocol-core/sdkerrors"
)

func TestCharMatch(t *testing.T) {
	p := Char('x')
	pos, v, err := p("xyz", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos != 1 || v != 'x' {
		t.Fatalf("expected pos=1 v='x', got pos=%d v=%c", pos, v)
	}
}

func TestTagIncompleteInput(t *testing.T) {
	p := Tag("hello")
	_, _, err := p("he", 0)
	var incomplete *sdkerrors.IncompleteInput
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteInput, got %v", err)
	}
}

func TestTakeNDigits(t *testing.T) {
	p := TakeNDigits(4)
	pos, v, err := p("2024rest", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos != 4 || v != 2024 {
		t.Fatalf("expected pos=4 v=2024, got pos=%d v=%d", pos, v)
	}
}

func TestTakeMNDigitsGreedy(t *testing.T) {
	p := TakeMNDigits(1, 2)
	pos, v, err := p("7x", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos != 1 || v != 7 {
		t.Fatalf("expected pos=1 v=7, got pos=%d v=%d", pos, v)
	}

	pos2, v2, err := p("07x", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos2 != 2 || v2 != 7 {
		t.Fatalf("expected pos=2 v=7, got pos=%d v=%d", pos2, v2)
	}
}

func TestNDigitsInRangeRejectsOutOfRange(t *testing.T) {
	p := NDigitsInRange(2, 1, 12)
	if _, _, err := p("13", 0); err == nil {
		t.Fatal("expected error for month 13")
	}
	if _, v, err := p("07", 0); err != nil || v != 7 {
		t.Fatalf("expected v=7, got v=%d err=%v", v, err)
	}
}

func TestFractionScalesToNanos(t *testing.T) {
	p := Fraction(1, 9, 9)
	_, v, err := p("1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 100_000_000 {
		t.Fatalf("expected 100000000, got %d", v)
	}
}

func TestFractionRejectsTooManyDigits(t *testing.T) {
	p := Fraction(1, 9, 9)
	if _, _, err := p("1234567890", 0); err == nil {
		t.Fatal("expected error for 10 fractional digits")
	}
}

func TestOptionalDoesNotConsumeOnFailure(t *testing.T) {
	p := Optional(Char('x'))
	pos, v, err := p("abc", 0)
	if err != nil {
		t.Fatalf("Optional should never fail, got %v", err)
	}
	if pos != 0 || v != nil {
		t.Fatalf("expected pos=0 v=nil, got pos=%d v=%v", pos, v)
	}
}

func TestAltTriesInOrder(t *testing.T) {
	p := Alt(Tag("foo"), Tag("bar"))
	pos, v, err := p("barbaz", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos != 3 || v != "bar" {
		t.Fatalf("expected pos=3 v=bar, got pos=%d v=%s", pos, v)
	}
}

func TestAltAllFail(t *testing.T) {
	p := Alt(Tag("foo"), Tag("bar"))
	if _, _, err := p("baz", 0); err == nil {
		t.Fatal("expected error when no alternative matches")
	}
}

func TestPrecededDiscardsFirstResult(t *testing.T) {
	p := Preceded(Char('$'), TakeNDigits(3))
	pos, v, err := p("$123", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos != 4 || v != 123 {
		t.Fatalf("expected pos=4 v=123, got pos=%d v=%d", pos, v)
	}
}

func TestThenReturnsPair(t *testing.T) {
	p := Then(TakeNDigits(2), Char(':'))
	_, pair, err := p("12:", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.First != 12 || pair.Second != ':' {
		t.Fatalf("unexpected pair: %+v", pair)
	}
}

func TestCondSkipsWhenFalse(t *testing.T) {
	p := Cond(false, Char('x'))
	pos, v, err := p("xyz", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos != 0 || v != nil {
		t.Fatalf("expected pos=0 v=nil, got pos=%d v=%v", pos, v)
	}
}

func TestMapTransforms(t *testing.T) {
	p := Map(TakeNDigits(2), func(v int) string { return "n=" + itoa(v) })
	_, v, err := p("42", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "n=42" {
		t.Fatalf("expected n=42, got %s", v)
	}
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
