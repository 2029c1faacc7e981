// Package board projects tasks onto a weekly calendar and drives drag-and-drop
// rescheduling of those projections.
package board

import (
	"slices"
	"time"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

// Column is one day of the board with its ordered slot items.
type Column struct {
	ID    string     `json:"id"`
	Date  time.Time  `json:"date"`
	Items []SlotItem `json:"items"`
}

// Board is the projection of a task list onto one week.
type Board struct {
	Mode    ViewMode `json:"mode"`
	Columns []Column `json:"columns"`
}

// Project places every open task of tasks onto the days of week. A task yields a
// scheduled slot when its scheduled date is shown and a deadline slot when its
// deadline is shown; with ViewBoth it may yield both in the same column.
// Items in a column are ordered by position, absent positions counting as zero,
// and otherwise keep the input order.
func Project(tasks []domain.Task, week []time.Time, mode ViewMode) Board {
	b := Board{Mode: mode, Columns: make([]Column, len(week))}
	index := make(map[time.Time]int, len(week))
	for i, d := range week {
		d = domain.Midnight(d)
		b.Columns[i] = Column{ID: ColumnID(d), Date: d, Items: []SlotItem{}}
		index[d] = i
	}

	place := func(t domain.Task, kind SlotKind, raw string) {
		if !mode.Includes(kind) {
			return
		}
		d, ok := domain.ParseDate(raw)
		if !ok {
			return
		}
		i, ok := index[d]
		if !ok {
			return
		}
		b.Columns[i].Items = append(b.Columns[i].Items, SlotItem{
			ID:     SlotID(t.ID, kind),
			TaskID: t.ID,
			Kind:   kind,
			Date:   d,
			Task:   t.Clone(),
		})
	}

	for _, t := range tasks {
		if t.Closed() {
			continue
		}
		place(t, SlotScheduled, t.ScheduledDate)
		place(t, SlotDeadline, t.DeadlineDate)
	}

	for i := range b.Columns {
		slices.SortStableFunc(b.Columns[i].Items, func(a, c SlotItem) int {
			pa, pc := a.Task.PositionValue(), c.Task.PositionValue()
			switch {
			case pa < pc:
				return -1
			case pa > pc:
				return 1
			}
			return 0
		})
	}
	return b
}

// Item finds a slot item anywhere on the board.
func (b Board) Item(slotID string) (SlotItem, bool) {
	for _, col := range b.Columns {
		for _, it := range col.Items {
			if it.ID == slotID {
				return it, true
			}
		}
	}
	return SlotItem{}, false
}

// Len returns the number of slot items on the board.
func (b Board) Len() int {
	n := 0
	for _, col := range b.Columns {
		n += len(col.Items)
	}
	return n
}

// ResolveContainerDate returns the date of the column currently holding slotID.
func ResolveContainerDate(slotID string, b Board) (time.Time, bool) {
	for _, col := range b.Columns {
		for _, it := range col.Items {
			if it.ID == slotID {
				return col.Date, true
			}
		}
	}
	return time.Time{}, false
}
