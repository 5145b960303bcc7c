// Package derive computes patient identifiers, ages and doctor load buckets.
// Everything here is pure and safe for concurrent use.
package derive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	PatientIDPrefix = "PT"
	FirstPatientID  = "PT0001"
	DateLayout      = "2006-01-02"
)

// NextPatientID returns the identifier following last. Any alphabetic prefix
// (PT, or P on records imported from the old system) is stripped before the
// numeric suffix is incremented. An empty last yields FirstPatientID.
// Ordering is numeric: the suffix keeps growing past PT9999.
func NextPatientID(last string) (string, error) {
	last = strings.TrimSpace(last)
	if last == "" {
		return FirstPatientID, nil
	}
	digits := strings.TrimLeftFunc(last, func(r rune) bool {
		return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
	})
	if digits == "" {
		return "", fmt.Errorf("patient id %q has no numeric suffix", last)
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return "", fmt.Errorf("patient id %q has a malformed suffix", last)
	}
	return FormatPatientID(n + 1), nil
}

// FormatPatientID renders sequence n as a patient identifier.
func FormatPatientID(n int) string {
	return fmt.Sprintf("%s%04d", PatientIDPrefix, n)
}

// PatientIDSeq returns the numeric suffix of id, or -1 when id is malformed.
func PatientIDSeq(id string) int {
	digits := strings.TrimLeftFunc(id, func(r rune) bool {
		return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
	})
	n, err := strconv.Atoi(digits)
	if err != nil || digits == "" {
		return -1
	}
	return n
}

// AgeAt returns whole years elapsed between birth and asOf, decremented when
// the birthday has not yet occurred in asOf's year. A zero birth date or one
// after asOf yields 0.
func AgeAt(birth, asOf time.Time) int {
	if birth.IsZero() || birth.After(asOf) {
		return 0
	}
	by, bm, bd := birth.Date()
	ay, am, ad := asOf.Date()
	age := ay - by
	if am < bm || (am == bm && ad < bd) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

type Load string

const (
	LoadLight  Load = "Light"
	LoadMedium Load = "Medium"
	LoadHeavy  Load = "Heavy"
)

// LoadBucket classifies a doctor's count of active visits today.
func LoadBucket(n int) Load {
	switch {
	case n <= 3:
		return LoadLight
	case n <= 6:
		return LoadMedium
	default:
		return LoadHeavy
	}
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// DayBounds returns [midnight, next midnight) of t's calendar day in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// MonthStart returns midnight on the first day of t's month in t's location.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
