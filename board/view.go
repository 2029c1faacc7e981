package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

// ViewMode selects which task dates are projected onto the board.
type ViewMode string

const (
	ViewScheduled ViewMode = "scheduled"
	ViewDeadline  ViewMode = "deadline"
	ViewBoth      ViewMode = "both"
)

// ParseViewMode accepts the three view mode names case-insensitively. An empty
// string selects ViewBoth.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ViewBoth:
		return ViewBoth, nil
	case ViewScheduled:
		return ViewScheduled, nil
	case ViewDeadline:
		return ViewDeadline, nil
	}
	return "", fmt.Errorf("invalid view mode %q", s)
}

// Includes reports whether slots of the given kind are shown in this mode.
func (m ViewMode) Includes(k SlotKind) bool {
	switch m {
	case ViewBoth:
		return true
	case ViewScheduled:
		return k == SlotScheduled
	case ViewDeadline:
		return k == SlotDeadline
	}
	return false
}

// DaysPerWeek is the number of columns on the board.
const DaysPerWeek = 7

// WeekStart returns the Monday of the week containing t.
func WeekStart(t time.Time) time.Time {
	d := domain.Midnight(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// Week returns the seven consecutive days starting at start.
func Week(start time.Time) []time.Time {
	start = domain.Midnight(start)
	days := make([]time.Time, DaysPerWeek)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// ShiftWeek moves start by n weeks.
func ShiftWeek(start time.Time, n int) time.Time {
	return domain.AddDays(start, n*DaysPerWeek)
}
