// Package due derives the live status of a task and its "due in" ordering from
// the stored deadline and the current date.
package due

import (
	"strconv"
	"time"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

// Kind ranks the three families of due-in values. Dated values sort before
// tasks without a deadline, which sort before completed tasks.
type Kind int

const (
	Dated Kind = iota
	NoDeadline
	Completed
)

func (k Kind) String() string {
	switch k {
	case Dated:
		return "dated"
	case NoDeadline:
		return "no_deadline"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// DueIn is the days-remaining sort key of a task. Days is meaningful only for
// Dated values.
type DueIn struct {
	Kind Kind `json:"kind"`
	Days int  `json:"days"`
}

// Bucket is the deadline styling class of a task.
type Bucket string

const (
	BucketCompleted Bucket = "completed"
	BucketUnset     Bucket = "unset"
	BucketOverdue   Bucket = "overdue"
	BucketNearDue   Bucket = "near_due"
	BucketNormal    Bucket = "normal"
)

const (
	// NearDueDays is the largest non-negative days-remaining still flagged near-due.
	NearDueDays = 3
	// MaxOverdueDays bounds a believable overdue span; anything older is a corrupt date.
	MaxOverdueDays = 2000
	// MinDeadlineYear is the first year accepted as a real deadline.
	MinDeadlineYear = 2000
)

// Classification is the display annotation of a task at a given instant.
type Classification struct {
	Status  domain.Status `json:"status"`
	DueIn   DueIn         `json:"due_in"`
	Label   string        `json:"label"`
	NearDue bool          `json:"near_due"`
	Bucket  Bucket        `json:"bucket"`
}

var unset = Classification{
	Status: domain.StatusPending,
	DueIn:  DueIn{Kind: NoDeadline},
	Label:  "-",
	Bucket: BucketUnset,
}

// Classify computes status, due-in and label for task as of now.
func Classify(task domain.Task, now time.Time) Classification {
	if task.Closed() {
		return Classification{
			Status: domain.StatusCompleted,
			DueIn:  DueIn{Kind: Completed},
			Label:  "Completed",
			Bucket: BucketCompleted,
		}
	}

	deadline, ok := domain.ParseDate(task.DeadlineDate)
	if !ok || deadline.Year() < MinDeadlineYear {
		return unset
	}

	days := domain.DaysBetween(now, deadline)
	if days < -MaxOverdueDays {
		return unset
	}

	c := Classification{
		Status: domain.StatusPending,
		DueIn:  DueIn{Kind: Dated, Days: days},
		Label:  label(days),
		Bucket: BucketNormal,
	}
	switch {
	case days < 0:
		c.Status = domain.StatusOverdue
		c.Bucket = BucketOverdue
	case days <= NearDueDays:
		c.NearDue = true
		c.Bucket = BucketNearDue
	}
	return c
}

// StatusFor returns the display status of task as of now. A stored Completed
// status counts as closed even without a completion date.
func StatusFor(task domain.Task, now time.Time) domain.Status {
	return Classify(task, now).Status
}

// AuthoritativeStatus returns the status to store for task as of now. Only the
// completion date closes a task, so clearing it reopens the task as Pending or
// Overdue whatever status was stored before.
func AuthoritativeStatus(task domain.Task, now time.Time) domain.Status {
	task.Status = ""
	return Classify(task, now).Status
}

func label(days int) string {
	switch days {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	case -1:
		return "Yesterday"
	}
	return strconv.Itoa(days) + " days"
}
