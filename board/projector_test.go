package board

import (
	"reflect"
	"testing"
	"time"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

var monday = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

func pos(v float64) *float64 { return &v }

func columnIDs(col Column) []string {
	out := make([]string, len(col.Items))
	for i, it := range col.Items {
		out[i] = it.ID
	}
	return out
}

func TestWeekStartIsMonday(t *testing.T) {
	cases := map[string]string{
		"2024-06-10": "2024-06-10",
		"2024-06-12": "2024-06-10",
		"2024-06-16": "2024-06-10",
		"2024-06-17": "2024-06-17",
		"2024-01-03": "2024-01-01",
	}
	for in, want := range cases {
		d, _ := domain.ParseDate(in)
		if got := domain.FormatDate(WeekStart(d)); got != want {
			t.Fatalf("WeekStart(%s) = %s, want %s", in, got, want)
		}
	}
	week := Week(monday)
	if len(week) != 7 || domain.FormatDate(week[6]) != "2024-06-16" {
		t.Fatalf("unexpected week %v", week)
	}
	if got := domain.FormatDate(ShiftWeek(monday, -1)); got != "2024-06-03" {
		t.Fatalf("ShiftWeek = %s", got)
	}
}

func TestSlotIDRoundTrip(t *testing.T) {
	for _, id := range []string{"42", "3f2c-11aa-bb", "task-dead"} {
		for _, kind := range []SlotKind{SlotScheduled, SlotDeadline} {
			gotID, gotKind, ok := ParseSlotID(SlotID(id, kind))
			if !ok || gotID != id || gotKind != kind {
				t.Fatalf("round trip %s/%s: %s %s %v", id, kind, gotID, gotKind, ok)
			}
		}
	}
	for _, bad := range []string{"", "-sched", "42", "42-other", "day-2024-06-10"} {
		if _, _, ok := ParseSlotID(bad); ok {
			t.Fatalf("ParseSlotID(%q) should fail", bad)
		}
	}
}

func TestDropTargetIDs(t *testing.T) {
	id := ColumnID(monday)
	if id != "day-2024-06-10" {
		t.Fatalf("ColumnID = %s", id)
	}
	d, ok := ParseDropTarget(id)
	if !ok || !d.Equal(monday) {
		t.Fatalf("ParseDropTarget(%s) = %v, %v", id, d, ok)
	}
	for _, bad := range []string{"1-sched", "day-", "day-tomorrow", ""} {
		if _, ok := ParseDropTarget(bad); ok {
			t.Fatalf("ParseDropTarget(%q) should fail", bad)
		}
	}
}

func TestProjectDualSlotsOnSameDay(t *testing.T) {
	tasks := []domain.Task{{ID: "a", ScheduledDate: "2024-06-12", DeadlineDate: "2024-06-12"}}

	b := Project(tasks, Week(monday), ViewBoth)
	col := b.Columns[2]
	if got := columnIDs(col); !reflect.DeepEqual(got, []string{"a-sched", "a-dead"}) {
		t.Fatalf("unexpected items %v", got)
	}
	if b.Len() != 2 {
		t.Fatalf("expected 2 slot items, got %d", b.Len())
	}
	for _, it := range col.Items {
		if it.TaskID != "a" || !it.Date.Equal(col.Date) {
			t.Fatalf("bad item %+v", it)
		}
	}

	if n := Project(tasks, Week(monday), ViewScheduled).Len(); n != 1 {
		t.Fatalf("scheduled mode yielded %d", n)
	}
	if n := Project(tasks, Week(monday), ViewDeadline).Len(); n != 1 {
		t.Fatalf("deadline mode yielded %d", n)
	}
}

func TestProjectIsIdempotent(t *testing.T) {
	tasks := []domain.Task{
		{ID: "a", ScheduledDate: "2024-06-10", DeadlineDate: "2024-06-14"},
		{ID: "b", DeadlineDate: "2024-06-10", Position: pos(2)},
		{ID: "c", ScheduledDate: "2024-06-10", Position: pos(-1)},
	}
	first := Project(tasks, Week(monday), ViewBoth)
	second := Project(tasks, Week(monday), ViewBoth)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("projection not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestProjectSkipsClosedAndOutOfWeek(t *testing.T) {
	tasks := []domain.Task{
		{ID: "done", ScheduledDate: "2024-06-11", Status: domain.StatusCompleted},
		{ID: "closed", DeadlineDate: "2024-06-11", CompletionDate: "2024-06-01"},
		{ID: "later", DeadlineDate: "2024-06-30"},
		{ID: "bad", DeadlineDate: "someday"},
		{ID: "open", DeadlineDate: "2024-06-11T10:00:00Z"},
	}
	b := Project(tasks, Week(monday), ViewBoth)
	if b.Len() != 1 {
		t.Fatalf("expected only the open task, got %+v", b)
	}
	if got := columnIDs(b.Columns[1]); !reflect.DeepEqual(got, []string{"open-dead"}) {
		t.Fatalf("unexpected items %v", got)
	}
}

func TestProjectOrdersByPositionThenInput(t *testing.T) {
	tasks := []domain.Task{
		{ID: "x", ScheduledDate: "2024-06-10", Position: pos(3)},
		{ID: "y", ScheduledDate: "2024-06-10"},
		{ID: "z", ScheduledDate: "2024-06-10", Position: pos(1)},
		{ID: "w", ScheduledDate: "2024-06-10", Position: pos(0)},
	}
	got := columnIDs(Project(tasks, Week(monday), ViewScheduled).Columns[0])
	want := []string{"y-sched", "w-sched", "z-sched", "x-sched"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestResolveContainerDate(t *testing.T) {
	tasks := []domain.Task{{ID: "a", ScheduledDate: "2024-06-11", DeadlineDate: "2024-06-14"}}
	b := Project(tasks, Week(monday), ViewBoth)

	d, ok := ResolveContainerDate("a-dead", b)
	if !ok || domain.FormatDate(d) != "2024-06-14" {
		t.Fatalf("deadline slot resolved to %v, %v", d, ok)
	}
	d, ok = ResolveContainerDate("a-sched", b)
	if !ok || domain.FormatDate(d) != "2024-06-11" {
		t.Fatalf("scheduled slot resolved to %v, %v", d, ok)
	}
	if _, ok := ResolveContainerDate("missing-sched", b); ok {
		t.Fatalf("expected unresolved slot")
	}
}

func TestParseViewMode(t *testing.T) {
	cases := map[string]ViewMode{"": ViewBoth, "Both": ViewBoth, "scheduled": ViewScheduled, " DEADLINE ": ViewDeadline}
	for in, want := range cases {
		got, err := ParseViewMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseViewMode(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseViewMode("month"); err == nil {
		t.Fatalf("expected error")
	}
}
