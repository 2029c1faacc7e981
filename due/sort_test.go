package due

import (
	"testing"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

func ids(tasks []domain.Task) string {
	out := ""
	for i, t := range tasks {
		if i > 0 {
			out += ","
		}
		out += t.ID
	}
	return out
}

func TestOverdueSortsBeforeNoDeadline(t *testing.T) {
	overdue := Classify(domain.Task{DeadlineDate: "2024-06-05"}, now).DueIn
	none := Classify(domain.Task{}, now).DueIn
	if overdue.Days != -5 {
		t.Fatalf("overdue days = %d", overdue.Days)
	}
	if Compare(overdue, none) >= 0 {
		t.Fatalf("expected overdue before no deadline")
	}
}

func TestSortOrder(t *testing.T) {
	tasks := []domain.Task{
		{ID: "done", DeadlineDate: "2024-06-01", Status: domain.StatusCompleted},
		{ID: "none"},
		{ID: "far", DeadlineDate: "2024-07-01"},
		{ID: "late", DeadlineDate: "2024-06-01"},
		{ID: "today", DeadlineDate: "2024-06-10"},
		{ID: "none2", DeadlineDate: "bad"},
	}

	Sort(tasks, now, Ascending)
	if got := ids(tasks); got != "late,today,far,none,none2,done" {
		t.Fatalf("ascending = %s", got)
	}

	Sort(tasks, now, Descending)
	if got := ids(tasks); got != "done,none,none2,far,today,late" {
		t.Fatalf("descending = %s", got)
	}
}

func TestCompareKinds(t *testing.T) {
	cases := []struct {
		a, b DueIn
		want int
	}{
		{DueIn{Kind: Dated, Days: 5000}, DueIn{Kind: NoDeadline}, -1},
		{DueIn{Kind: NoDeadline}, DueIn{Kind: Completed}, -1},
		{DueIn{Kind: Completed}, DueIn{Kind: Dated, Days: -3}, 1},
		{DueIn{Kind: NoDeadline, Days: 4}, DueIn{Kind: NoDeadline}, 0},
		{DueIn{Kind: Dated, Days: 2}, DueIn{Kind: Dated, Days: 2}, 0},
	}
	for _, tc := range cases {
		if got := Compare(tc.a, tc.b); got != tc.want {
			t.Fatalf("Compare(%+v, %+v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
