// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package timestamp

import "testing"

func TestParseEpochWithFraction(t *testing.T) {
	got, err := ParseEpoch("1604588357.000000001")
	if err != nil {
		t.Fatalf("ParseEpoch: %v", err)
	}
	want := ParsedDatetime{Year: 2020, Month: 11, Day: 5, Hour: 13, Min: 39, Sec: 17, Nanos: 1, OffsetSec: 0}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestParseEpochNoFraction(t *testing.T) {
	got, err := ParseEpoch("0")
	if err != nil {
		t.Fatalf("ParseEpoch: %v", err)
	}
	if got.Year != 1970 || got.Month != 1 || got.Day != 1 {
		t.Fatalf("expected 1970-01-01, got %+v", got)
	}
}

func TestParseISO8601ExtendedWithFractionZ(t *testing.T) {
	got, err := ParseISO8601("1990-02-17T02:31:22.123456789Z")
	if err != nil {
		t.Fatalf("ParseISO8601: %v", err)
	}
	want := ParsedDatetime{Year: 1990, Month: 2, Day: 17, Hour: 2, Min: 31, Sec: 22, Nanos: 123456789, OffsetSec: 0}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestParseISO8601WithNumericOffset(t *testing.T) {
	got, err := ParseISO8601("1990-12-19T16:39:57-08:00")
	if err != nil {
		t.Fatalf("ParseISO8601: %v", err)
	}
	want := ParsedDatetime{Year: 1990, Month: 12, Day: 19, Hour: 16, Min: 39, Sec: 57, Nanos: 0, OffsetSec: -28800}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestParseISO8601DateOnly(t *testing.T) {
	got, err := ParseISO8601("2021-06-01")
	if err != nil {
		t.Fatalf("ParseISO8601: %v", err)
	}
	want := ParsedDatetime{Year: 2021, Month: 6, Day: 1}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestParseISO8601BasicFormat(t *testing.T) {
	got, err := ParseISO8601("19900217T023122Z")
	if err != nil {
		t.Fatalf("ParseISO8601: %v", err)
	}
	want := ParsedDatetime{Year: 1990, Month: 2, Day: 17, Hour: 2, Min: 31, Sec: 22}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestParseISO8601RejectsExcessFractionDigits(t *testing.T) {
	if _, err := ParseISO8601("1990-02-17T02:31:22.1234567890Z"); err == nil {
		t.Fatal("expected error for 10 fractional digits")
	}
}

func TestParseRFC5322WithDayOfWeekAndGMT(t *testing.T) {
	got, err := ParseRFC5322("Sun, 06 Nov 1994 08:49:37 GMT")
	if err != nil {
		t.Fatalf("ParseRFC5322: %v", err)
	}
	want := ParsedDatetime{Year: 1994, Month: 11, Day: 6, Hour: 8, Min: 49, Sec: 37, OffsetSec: 0}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestParseRFC5322WithoutDayOfWeekNumericOffset(t *testing.T) {
	got, err := ParseRFC5322("6 Nov 1994 08:49 -0800")
	if err != nil {
		t.Fatalf("ParseRFC5322: %v", err)
	}
	want := ParsedDatetime{Year: 1994, Month: 11, Day: 6, Hour: 8, Min: 49, Sec: 0, OffsetSec: -28800}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestParseRFC5322RejectsUnknownZone(t *testing.T) {
	if _, err := ParseRFC5322("Sun, 06 Nov 1994 08:49:37 EST"); err == nil {
		t.Fatal("expected error for unknown named zone EST")
	}
}

func TestParseRFC5322AllowsLeapSecond60(t *testing.T) {
	got, err := ParseRFC5322("Sun, 06 Nov 1994 08:49:60 GMT")
	if err != nil {
		t.Fatalf("ParseRFC5322: %v", err)
	}
	if got.Sec != 60 {
		t.Fatalf("expected sec=60, got %d", got.Sec)
	}
}
