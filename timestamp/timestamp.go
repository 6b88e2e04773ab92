// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package timestamp parses epoch, ISO-8601, and RFC-5322 timestamps into a
// normalized ParsedDatetime, built entirely on top of parsec the way
// internal/protocol/reader.go threads a cursor through a binary frame
// field by field.
package timestamp

import (
	"strings"

	"github.com/nishisan-dev/go-protocol-core/parsec"
	"github.com/nishisan-dev/go-protocol-core/sdkerrors"
)

// ParsedDatetime is the normalized result of every entry point in this
// package: year in [1,9999], month in [1,12], day in [1,31], hour in
// [0,23], min in [0,59], sec in [0,60] (60 tolerates a leap second),
// nanos in [0,999999999], offsetSec signed seconds from UTC.
type ParsedDatetime struct {
	Year      int
	Month     int
	Day       int
	Hour      int
	Min       int
	Sec       int
	Nanos     int
	OffsetSec int
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// ParseEpoch parses integer[.fraction] seconds since the Unix epoch. The
// fraction, if present, is scaled to nanoseconds (scale 9).
func ParseEpoch(s string) (ParsedDatetime, error) {
	pos := 0
	neg := false
	if pos < len(s) && s[pos] == '-' {
		neg = true
		pos++
	}
	start := pos
	for pos < len(s) && isDigit(s[pos]) {
		pos++
	}
	if pos == start {
		return ParsedDatetime{}, sdkerrors.NewParseError(pos, "expected digits for epoch seconds")
	}
	seconds := 0
	for i := start; i < pos; i++ {
		seconds = seconds*10 + int(s[i]-'0')
	}
	if neg {
		seconds = -seconds
	}

	nanos := 0
	if pos < len(s) && s[pos] == '.' {
		fracPos, v, err := parsec.Fraction(1, 9, 9)(s, pos+1)
		if err != nil {
			return ParsedDatetime{}, err
		}
		nanos = v
		pos = fracPos
	}
	if pos != len(s) {
		return ParsedDatetime{}, sdkerrors.NewParseError(pos, "unexpected trailing characters %q", s[pos:])
	}

	return fromEpochSeconds(seconds, nanos), nil
}

// daysInMonth reports the length of month m in year y (1-indexed month).
func daysInMonth(y, m int) int {
	switch m {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if isLeap(y) {
			return 29
		}
		return 28
	}
	return 30
}

func isLeap(y int) bool {
	return (y%4 == 0 && y%100 != 0) || y%400 == 0
}

// fromEpochSeconds converts a Unix epoch offset (possibly negative) to a
// UTC civil ParsedDatetime, using the standard civil_from_days algorithm.
func fromEpochSeconds(epochSeconds, nanos int) ParsedDatetime {
	days := floorDiv(epochSeconds, 86400)
	secOfDay := epochSeconds - days*86400

	hour := secOfDay / 3600
	min := (secOfDay % 3600) / 60
	sec := secOfDay % 60

	y, m, d := civilFromDays(days)
	return ParsedDatetime{Year: y, Month: m, Day: d, Hour: hour, Min: min, Sec: sec, Nanos: nanos, OffsetSec: 0}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// civilFromDays converts days-since-epoch (1970-01-01) to (year, month,
// day) using Howard Hinnant's civil_from_days algorithm.
func civilFromDays(z int) (int, int, int) {
	z += 719468
	era := z
	if z < 0 {
		era -= 146096
	}
	era /= 146097
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d := doy - (153*mp+2)/5 + 1
	m := mp + 3
	if mp >= 10 {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}
	return y, m, d
}

var months = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func monthByName(name string) (int, bool) {
	for i, m := range months {
		if strings.EqualFold(m, name) {
			return i + 1, true
		}
	}
	return 0, false
}

// ParseISO8601 accepts date-only YYYY-MM-DD, extended
// YYYY-MM-DDThh:mm:ss[.fraction][Z|±hh:mm], and basic
// YYYYMMDDThhmmss[…] (with optional colons in the time portion).
func ParseISO8601(s string) (ParsedDatetime, error) {
	pos := 0
	year, pos, err := takeAt(s, pos, parsec.TakeNDigits(4))
	if err != nil {
		return ParsedDatetime{}, err
	}

	basic := pos < len(s) && isDigit(s[pos])
	var month, day int
	if basic {
		month, pos, err = takeAt(s, pos, parsec.NDigitsInRange(2, 1, 12))
		if err != nil {
			return ParsedDatetime{}, err
		}
		day, pos, err = takeAt(s, pos, parsec.NDigitsInRange(2, 1, 31))
		if err != nil {
			return ParsedDatetime{}, err
		}
	} else {
		if pos >= len(s) || s[pos] != '-' {
			return ParsedDatetime{}, sdkerrors.NewParseError(pos, "expected '-'")
		}
		pos++
		month, pos, err = takeAt(s, pos, parsec.NDigitsInRange(2, 1, 12))
		if err != nil {
			return ParsedDatetime{}, err
		}
		if pos >= len(s) || s[pos] != '-' {
			return ParsedDatetime{}, sdkerrors.NewParseError(pos, "expected '-'")
		}
		pos++
		day, pos, err = takeAt(s, pos, parsec.NDigitsInRange(2, 1, 31))
		if err != nil {
			return ParsedDatetime{}, err
		}
	}

	if day > daysInMonth(year, month) {
		return ParsedDatetime{}, sdkerrors.NewParseError(pos, "day %d out of range for %04d-%02d", day, year, month)
	}

	if pos >= len(s) {
		return ParsedDatetime{Year: year, Month: month, Day: day}, nil
	}
	if s[pos] != 'T' && s[pos] != 't' {
		return ParsedDatetime{}, sdkerrors.NewParseError(pos, "expected 'T'")
	}
	pos++

	hour, pos, err := takeAt(s, pos, parsec.NDigitsInRange(2, 0, 23))
	if err != nil {
		return ParsedDatetime{}, err
	}
	if pos < len(s) && s[pos] == ':' {
		pos++
	}
	minute, pos2, err := takeAt(s, pos, parsec.NDigitsInRange(2, 0, 59))
	if err != nil {
		return ParsedDatetime{}, err
	}
	pos = pos2
	if pos < len(s) && s[pos] == ':' {
		pos++
	}
	sec, pos3, err := takeAt(s, pos, parsec.NDigitsInRange(2, 0, 60))
	if err != nil {
		return ParsedDatetime{}, err
	}
	pos = pos3

	nanos := 0
	if pos < len(s) && s[pos] == '.' {
		fracPos, v, ferr := parsec.Fraction(1, 9, 9)(s, pos+1)
		if ferr != nil {
			return ParsedDatetime{}, ferr
		}
		nanos = v
		pos = fracPos
	}

	offsetSec := 0
	if pos >= len(s) {
		return ParsedDatetime{Year: year, Month: month, Day: day, Hour: hour, Min: minute, Sec: sec, Nanos: nanos}, nil
	}
	switch s[pos] {
	case 'Z', 'z':
		pos++
	case '+', '-':
		sign := 1
		if s[pos] == '-' {
			sign = -1
		}
		pos++
		offHour, p, oerr := takeAt(s, pos, parsec.TakeNDigits(2))
		if oerr != nil {
			return ParsedDatetime{}, sdkerrors.NewParseError(pos, "invalid timezone offset")
		}
		pos = p
		if pos < len(s) && s[pos] == ':' {
			pos++
		}
		offMin, p2, oerr := takeAt(s, pos, parsec.TakeNDigits(2))
		if oerr != nil {
			return ParsedDatetime{}, sdkerrors.NewParseError(pos, "invalid timezone offset")
		}
		pos = p2
		offsetSec = sign * (offHour*3600 + offMin*60)
	default:
		return ParsedDatetime{}, sdkerrors.NewParseError(pos, "invalid timezone offset")
	}

	if pos != len(s) {
		return ParsedDatetime{}, sdkerrors.NewParseError(pos, "invalid timezone offset")
	}

	return ParsedDatetime{
		Year: year, Month: month, Day: day,
		Hour: hour, Min: minute, Sec: sec,
		Nanos: nanos, OffsetSec: offsetSec,
	}, nil
}

// takeAt adapts a parsec.Parser[int] call site to discard the need to
// repeat (input, pos) bookkeeping at every call.
func takeAt(s string, pos int, p parsec.Parser[int]) (int, int, error) {
	newPos, v, err := p(s, pos)
	if err != nil {
		return v, pos, err
	}
	return v, newPos, nil
}

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

// ParseRFC5322 accepts "[DoW, ] DD Mon YYYY hh:mm[:ss] (±hhmm|GMT|UTC|UT|Z)".
func ParseRFC5322(s string) (ParsedDatetime, error) {
	pos := 0
	pos = skipSpaces(s, pos)

	// Optional "DoW, "
	save := pos
	end := save
	for end < len(s) && isAlpha(s[end]) {
		end++
	}
	if end < len(s) && s[end] == ',' {
		pos = end + 1
		pos = skipSpaces(s, pos)
	} else {
		pos = save
	}

	day, pos, err := takeAt(s, pos, parsec.MNDigitsInRange(1, 2, 1, 31))
	if err != nil {
		return ParsedDatetime{}, err
	}
	pos = skipSpaces(s, pos)

	monthStart := pos
	for pos < len(s) && isAlpha(s[pos]) {
		pos++
	}
	month, ok := monthByName(s[monthStart:pos])
	if !ok {
		return ParsedDatetime{}, sdkerrors.NewParseError(monthStart, "unknown month %q", s[monthStart:pos])
	}
	pos = skipSpaces(s, pos)

	year, pos, err := takeAt(s, pos, parsec.TakeNDigits(4))
	if err != nil {
		return ParsedDatetime{}, err
	}
	if day > daysInMonth(year, month) {
		return ParsedDatetime{}, sdkerrors.NewParseError(pos, "day %d out of range for %04d-%02d", day, year, month)
	}
	pos = skipSpaces(s, pos)

	hour, pos, err := takeAt(s, pos, parsec.NDigitsInRange(2, 0, 23))
	if err != nil {
		return ParsedDatetime{}, err
	}
	if pos >= len(s) || s[pos] != ':' {
		return ParsedDatetime{}, sdkerrors.NewParseError(pos, "expected ':'")
	}
	pos++
	minute, pos, err := takeAt(s, pos, parsec.NDigitsInRange(2, 0, 59))
	if err != nil {
		return ParsedDatetime{}, err
	}

	sec := 0
	if pos < len(s) && s[pos] == ':' {
		pos++
		sec, pos, err = takeAt(s, pos, parsec.NDigitsInRange(2, 0, 60))
		if err != nil {
			return ParsedDatetime{}, err
		}
	}
	pos = skipSpaces(s, pos)

	offsetSec, pos, err := parseRfc5322Zone(s, pos)
	if err != nil {
		return ParsedDatetime{}, err
	}
	if pos != len(s) {
		return ParsedDatetime{}, sdkerrors.NewParseError(pos, "unexpected trailing characters %q", s[pos:])
	}

	return ParsedDatetime{
		Year: year, Month: month, Day: day,
		Hour: hour, Min: minute, Sec: sec,
		Nanos: 0, OffsetSec: offsetSec,
	}, nil
}

func skipSpaces(s string, pos int) int {
	for pos < len(s) && s[pos] == ' ' {
		pos++
	}
	return pos
}

func parseRfc5322Zone(s string, pos int) (int, int, error) {
	if pos >= len(s) {
		return 0, pos, sdkerrors.NewParseError(pos, "invalid timezone offset")
	}
	switch s[pos] {
	case '+', '-':
		sign := 1
		if s[pos] == '-' {
			sign = -1
		}
		pos++
		hh, p, err := takeAt(s, pos, parsec.TakeNDigits(2))
		if err != nil {
			return 0, pos, sdkerrors.NewParseError(pos, "invalid timezone offset")
		}
		mm, p2, err := takeAt(s, p, parsec.TakeNDigits(2))
		if err != nil {
			return 0, pos, sdkerrors.NewParseError(pos, "invalid timezone offset")
		}
		return sign * (hh*3600 + mm*60), p2, nil
	case 'Z':
		return 0, pos + 1, nil
	}
	rest := s[pos:]
	for _, name := range []string{"GMT", "UTC", "UT"} {
		if strings.HasPrefix(rest, name) {
			return 0, pos + len(name), nil
		}
	}
	return 0, pos, sdkerrors.NewParseError(pos, "invalid timezone offset")
}
