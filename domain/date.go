package domain

import (
	"math"
	"strings"
	"time"
)

// DateLayout is the wire format of every calendar date field.
const DateLayout = "2006-01-02"

// ClockLayout is the wire format of the scheduled time of day.
const ClockLayout = "15:04"

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseDate parses a stored calendar date. Datetime values are accepted and reduced
// to their calendar day. The result is midnight UTC of that day.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Midnight(t), true
		}
	}
	return time.Time{}, false
}

// Midnight strips the time of day, keeping the calendar day as seen in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders the calendar day of t in DateLayout.
func FormatDate(t time.Time) string {
	return Midnight(t).Format(DateLayout)
}

// NormalizeDate rewrites a parseable date in DateLayout, returning ok=false when
// the input cannot be parsed.
func NormalizeDate(s string) (string, bool) {
	t, ok := ParseDate(s)
	if !ok {
		return "", false
	}
	return FormatDate(t), true
}

// AddDays shifts a calendar day by n days.
func AddDays(t time.Time, n int) time.Time {
	return Midnight(t).AddDate(0, 0, n)
}

// DaysBetween returns the whole number of calendar days from one day to another,
// rounded up. Both instants are reduced to midnight first.
func DaysBetween(from, to time.Time) int {
	diff := Midnight(to).Sub(Midnight(from))
	return int(math.Ceil(diff.Hours() / 24))
}

// SameDay reports whether two instants fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return Midnight(a).Equal(Midnight(b))
}
