package domain

import "strings"

// Status is the lifecycle state of a task as shown on the dashboard.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusOverdue   Status = "Overdue"
	StatusCompleted Status = "Completed"
)

// Task represents a single tracked assignment in the task-record service.
//
// Date fields hold ISO "YYYY-MM-DD" strings exactly as stored; they may be empty
// or malformed, in which case consumers treat them as unset.
type Task struct {
	ID             string   `json:"id"`
	TaskNumber     string   `json:"task_number,omitempty"`
	Description    string   `json:"description,omitempty"`
	AssignedAgency string   `json:"assigned_agency,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	AllocatedDate  string   `json:"allocated_date,omitempty"`
	TimeGiven      string   `json:"time_given,omitempty"`
	DeadlineDate   string   `json:"deadline_date,omitempty"`
	CompletionDate string   `json:"completion_date,omitempty"`
	Status         Status   `json:"status"`
	ScheduledDate  string   `json:"scheduled_date,omitempty"`
	ScheduledTime  string   `json:"scheduled_time,omitempty"`
	Position       *float64 `json:"position,omitempty"`
	IsPinned       bool     `json:"is_pinned"`
	Remarks        string   `json:"remarks,omitempty"`
	Source         string   `json:"source,omitempty"`
}

// Closed reports whether the task has been completed, either through an explicit
// completion date or a Completed status.
func (t Task) Closed() bool {
	return strings.TrimSpace(t.CompletionDate) != "" || t.Status == StatusCompleted
}

// PositionValue returns the manual ordering position, treating an absent value as zero.
func (t Task) PositionValue() float64 {
	if t.Position == nil {
		return 0
	}
	return *t.Position
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	if t.Position != nil {
		p := *t.Position
		t.Position = &p
	}
	return t
}

// CloneTasks copies a task list so callers can mutate it freely.
func CloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}
