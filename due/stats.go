package due

import (
	"strings"
	"time"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

// Counts is a status breakdown over a set of tasks.
type Counts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Overdue   int `json:"overdue"`
	NearDue   int `json:"near_due"`
}

// Stats summarises the dashboard as a whole and per agency. Pending counts
// every task that is not completed, overdue ones included.
type Stats struct {
	Counts
	ByAgency map[string]Counts `json:"by_agency"`
}

// UnassignedAgency groups tasks with no agency in Stats.ByAgency.
const UnassignedAgency = "Unassigned"

// Summarize classifies every task as of now and tallies the results.
func Summarize(tasks []domain.Task, now time.Time) Stats {
	s := Stats{ByAgency: map[string]Counts{}}
	for _, t := range tasks {
		c := Classify(t, now)
		agency := strings.TrimSpace(t.AssignedAgency)
		if agency == "" {
			agency = UnassignedAgency
		}
		ac := s.ByAgency[agency]
		ac.add(c)
		s.ByAgency[agency] = ac
		s.Counts.add(c)
	}
	return s
}

func (c *Counts) add(cl Classification) {
	c.Total++
	switch cl.Status {
	case domain.StatusCompleted:
		c.Completed++
		return
	case domain.StatusOverdue:
		c.Overdue++
	}
	c.Pending++
	if cl.NearDue {
		c.NearDue++
	}
}
