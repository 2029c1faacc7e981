package board

import (
	"strings"
	"time"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

// SlotKind says which task date placed a slot item in its column.
type SlotKind string

const (
	SlotScheduled SlotKind = "scheduled"
	SlotDeadline  SlotKind = "deadline"
)

const (
	scheduledSuffix = "sched"
	deadlineSuffix  = "dead"
	columnPrefix    = "day-"
)

// SlotItem is one task as placed in one day column. It refers back to its task
// by id and carries a copy of the task for rendering.
type SlotItem struct {
	ID     string      `json:"id"`
	TaskID string      `json:"task_id"`
	Kind   SlotKind    `json:"kind"`
	Date   time.Time   `json:"date"`
	Task   domain.Task `json:"task"`
}

// DateString returns the slot date in wire format.
func (s SlotItem) DateString() string {
	return domain.FormatDate(s.Date)
}

// SlotID builds the stable identifier of a task's slot of the given kind.
func SlotID(taskID string, kind SlotKind) string {
	if kind == SlotDeadline {
		return taskID + "-" + deadlineSuffix
	}
	return taskID + "-" + scheduledSuffix
}

// ParseSlotID splits a slot identifier into its task id and kind. Task ids may
// themselves contain dashes; only the last segment names the kind.
func ParseSlotID(id string) (string, SlotKind, bool) {
	i := strings.LastIndex(id, "-")
	if i <= 0 {
		return "", "", false
	}
	switch id[i+1:] {
	case scheduledSuffix:
		return id[:i], SlotScheduled, true
	case deadlineSuffix:
		return id[:i], SlotDeadline, true
	}
	return "", "", false
}

// ColumnID returns the drop-target identifier of a day column.
func ColumnID(date time.Time) string {
	return columnPrefix + domain.FormatDate(date)
}

// ParseDropTarget parses a day column identifier.
func ParseDropTarget(id string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(id, columnPrefix)
	if !ok {
		return time.Time{}, false
	}
	d, err := time.Parse(domain.DateLayout, rest)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
