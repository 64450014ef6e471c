package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// jetEpoch is the Jet DATETIME zero point: 1899-12-30, in UTC. Go's
// time package performs all calendar arithmetic proleptically (it never
// applies the 1582 Julian/Gregorian cutover), which is exactly the
// "configure date arithmetic to use a proleptic Gregorian calendar"
// requirement of spec.md §4.4 — there is no host default to override.
var jetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// EncodeDateTime writes a DATETIME value: an IEEE 754 double whose
// integer part is days since 1899-12-30 and fractional part is time of
// day.
func EncodeDateTime(t time.Time) []byte {
	days := t.UTC().Sub(jetEpoch).Hours() / 24
	return EncodeFloat64(days)
}

// DecodeDateTime reconstructs the time.Time a DATETIME field encodes, in
// UTC.
func DecodeDateTime(b []byte) time.Time {
	days := DecodeFloat64(b)
	return jetEpoch.Add(time.Duration(days * float64(24*time.Hour)))
}

// ExtDateTime is the value an EXT_DATETIME column encodes/decodes to:
// an instant plus the timezone offset spec.md §4.4 stores alongside it.
type ExtDateTime struct {
	Time            time.Time
	TZOffsetMinutes int
}

// EncodeExtDateTime writes the 42-byte EXT_DATETIME field: ASCII
// "YYYYMMDDHHMMSS.fffffff" (seven fractional-second digits) followed by
// sign/timezone bytes, per spec.md §4.4.
func EncodeExtDateTime(t time.Time, tzOffsetMinutes int) []byte {
	buf := make([]byte, 42)
	nanos := t.Nanosecond()
	frac := nanos / 100 // 100ns ticks -> 7 fractional digits
	s := fmt.Sprintf("%04d%02d%02d%02d%02d%02d.%07d",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), frac)
	copy(buf, s)
	sign := byte('+')
	off := tzOffsetMinutes
	if off < 0 {
		sign = '-'
		off = -off
	}
	buf[len(s)] = sign
	tz := fmt.Sprintf("%04d", off)
	copy(buf[len(s)+1:], tz)
	return buf
}

// DecodeExtDateTime reconstructs the time.Time and timezone-offset
// minutes an EXT_DATETIME field encodes.
func DecodeExtDateTime(b []byte) (time.Time, int, error) {
	s := strings.TrimRight(string(b), "\x00")
	signIdx := strings.IndexAny(s, "+-")
	if signIdx < 0 {
		return time.Time{}, 0, fmt.Errorf("value: EXT_DATETIME missing sign/tz suffix")
	}
	datePart := s[:signIdx]
	tzPart := s[signIdx:]
	dotIdx := strings.IndexByte(datePart, '.')
	if dotIdx < 0 {
		return time.Time{}, 0, fmt.Errorf("value: EXT_DATETIME missing fractional seconds")
	}
	whole, frac := datePart[:dotIdx], datePart[dotIdx+1:]
	if len(whole) != 14 {
		return time.Time{}, 0, fmt.Errorf("value: EXT_DATETIME malformed date/time prefix")
	}
	year, _ := strconv.Atoi(whole[0:4])
	month, _ := strconv.Atoi(whole[4:6])
	day, _ := strconv.Atoi(whole[6:8])
	hour, _ := strconv.Atoi(whole[8:10])
	min, _ := strconv.Atoi(whole[10:12])
	sec, _ := strconv.Atoi(whole[12:14])
	fracDigits, _ := strconv.Atoi(frac)
	nanos := fracDigits * 100
	sign := 1
	if tzPart[0] == '-' {
		sign = -1
	}
	tzMinutes, _ := strconv.Atoi(tzPart[1:])
	t := time.Date(year, time.Month(month), day, hour, min, sec, nanos, time.UTC)
	return t, sign * tzMinutes, nil
}
