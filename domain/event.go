package domain

import "github.com/bytedance/sonic"

const (
	EventTaskCreated = "task-created"
	EventTaskUpdated = "task-updated"
	EventTaskDeleted = "task-deleted"
)

// Event describes a change to a task record. Events are queued for downstream
// consumers and fanned out to live board clients.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	TaskID    string                 `json:"taskId"`
	Data      sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}
