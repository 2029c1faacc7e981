// Package temporal keeps the allocation date, duration and deadline of a task
// consistent with each other when any one of them is edited.
package temporal

import (
	"regexp"
	"strconv"
	"time"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

// Field names one member of the temporal triple.
type Field string

const (
	FieldAllocatedDate Field = "allocated_date"
	FieldTimeGiven     Field = "time_given"
	FieldDeadlineDate  Field = "deadline_date"
)

// Triple is the (allocated_date, time_given, deadline_date) view of a task.
type Triple struct {
	AllocatedDate string
	TimeGiven     string
	DeadlineDate  string
}

// Of extracts the temporal triple of a task.
func Of(t domain.Task) Triple {
	return Triple{AllocatedDate: t.AllocatedDate, TimeGiven: t.TimeGiven, DeadlineDate: t.DeadlineDate}
}

var daysPattern = regexp.MustCompile(`-?\d+`)

// ParseDays returns the first integer in a duration string such as "10 days".
// A leading minus sign belongs to the integer.
func ParseDays(s string) (int, bool) {
	m := daysPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatDays renders a day count the way the synchronizer writes time_given.
func FormatDays(n int) string {
	return strconv.Itoa(n) + " days"
}

// DeadlineFor returns allocated + days.
func DeadlineFor(allocated time.Time, days int) time.Time {
	return domain.AddDays(allocated, days)
}

// DurationBetween returns the whole days from allocated to deadline, rounded up.
func DurationBetween(allocated, deadline time.Time) int {
	return domain.DaysBetween(allocated, deadline)
}

// Sync applies an edit of one field and recomputes the dependent field. Values
// that cannot be parsed leave the triple as it was.
func Sync(tr Triple, field Field, value string) Triple {
	switch field {
	case FieldTimeGiven:
		days, ok := ParseDays(value)
		if !ok {
			return tr
		}
		alloc, ok := domain.ParseDate(tr.AllocatedDate)
		if !ok {
			return tr
		}
		tr.TimeGiven = value
		tr.DeadlineDate = domain.FormatDate(DeadlineFor(alloc, days))
		return tr

	case FieldDeadlineDate:
		if value == "" {
			tr.DeadlineDate = ""
			return tr
		}
		deadline, ok := domain.ParseDate(value)
		if !ok {
			return tr
		}
		tr.DeadlineDate = value
		if alloc, ok := domain.ParseDate(tr.AllocatedDate); ok {
			tr.TimeGiven = FormatDays(DurationBetween(alloc, deadline))
		}
		return tr

	case FieldAllocatedDate:
		alloc, ok := domain.ParseDate(value)
		if !ok {
			return tr
		}
		tr.AllocatedDate = value
		if days, ok := ParseDays(tr.TimeGiven); ok {
			tr.DeadlineDate = domain.FormatDate(DeadlineFor(alloc, days))
		}
		return tr
	}
	return tr
}

// SyncPatch completes a partial update that edits exactly one temporal field by
// adding the recomputed dependent field. Patches touching none, or several, of
// the three fields are returned as given.
func SyncPatch(t domain.Task, p domain.Patch) domain.Patch {
	var (
		field Field
		value string
		n     int
	)
	if p.AllocatedDate != nil {
		field, value = FieldAllocatedDate, *p.AllocatedDate
		n++
	}
	if p.TimeGiven != nil {
		field, value = FieldTimeGiven, *p.TimeGiven
		n++
	}
	if p.DeadlineDate != nil {
		field, value = FieldDeadlineDate, *p.DeadlineDate
		n++
	}
	if n != 1 {
		return p
	}

	diff := Patch(Of(t), Sync(Of(t), field, value))
	if diff.AllocatedDate != nil {
		p.AllocatedDate = diff.AllocatedDate
	}
	if diff.TimeGiven != nil {
		p.TimeGiven = diff.TimeGiven
	}
	if diff.DeadlineDate != nil {
		p.DeadlineDate = diff.DeadlineDate
	}
	return p
}

// Extend pushes the deadline back by days. A task without a usable deadline is
// given fallback + days instead.
func Extend(tr Triple, days int, fallback time.Time) Triple {
	base, ok := domain.ParseDate(tr.DeadlineDate)
	if !ok {
		base = fallback
	}
	return Sync(tr, FieldDeadlineDate, domain.FormatDate(domain.AddDays(base, days)))
}

// DeadlineFromToday sets the deadline to today + days.
func DeadlineFromToday(tr Triple, today time.Time, days int) Triple {
	return Sync(tr, FieldDeadlineDate, domain.FormatDate(domain.AddDays(today, days)))
}

// Patch returns the difference between two triples as a partial update.
func Patch(before, after Triple) domain.Patch {
	var p domain.Patch
	if after.AllocatedDate != before.AllocatedDate {
		p.AllocatedDate = domain.Str(after.AllocatedDate)
	}
	if after.TimeGiven != before.TimeGiven {
		p.TimeGiven = domain.Str(after.TimeGiven)
	}
	if after.DeadlineDate != before.DeadlineDate {
		p.DeadlineDate = domain.Str(after.DeadlineDate)
	}
	return p
}
