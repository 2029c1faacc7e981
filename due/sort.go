package due

import (
	"slices"
	"time"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

// Direction selects ascending or descending due-soon order.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// ParseDirection maps "desc" to Descending and anything else to Ascending.
func ParseDirection(s string) Direction {
	if s == "desc" {
		return Descending
	}
	return Ascending
}

// Compare orders due-in values: dated before no-deadline before completed, and
// dated values by days remaining.
func Compare(a, b DueIn) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if a.Kind != Dated {
		return 0
	}
	switch {
	case a.Days < b.Days:
		return -1
	case a.Days > b.Days:
		return 1
	}
	return 0
}

// Sort orders tasks in place by due-in as of now. Descending negates the
// comparator; equal keys keep their input order in both directions.
func Sort(tasks []domain.Task, now time.Time, dir Direction) {
	type keyed struct {
		task domain.Task
		key  DueIn
	}
	items := make([]keyed, len(tasks))
	for i, t := range tasks {
		items[i] = keyed{task: t, key: Classify(t, now).DueIn}
	}
	slices.SortStableFunc(items, func(a, b keyed) int {
		c := Compare(a.key, b.key)
		if dir == Descending {
			return -c
		}
		return c
	})
	for i := range items {
		tasks[i] = items[i].task
	}
}
