package board

import (
	"errors"
	"fmt"
)

var (
	// ErrNotIdle is returned when a gesture starts while another is in progress.
	ErrNotIdle = errors.New("board: another move is in progress")
	// ErrNotDragging is returned by Drop and Cancel outside of a drag.
	ErrNotDragging = errors.New("board: no drag in progress")
	// ErrUnknownSlot is returned when a drag starts on a slot that is not rendered.
	ErrUnknownSlot = errors.New("board: unknown slot")
	// ErrReorderUnsupported is returned for a drop onto another slot of the same day.
	// Reordering within a day is not supported.
	ErrReorderUnsupported = errors.New("board: reordering within a day is not supported")
	// ErrInvalidDate is returned when a scheduling date or time cannot be parsed.
	ErrInvalidDate = errors.New("board: invalid date")
)

// UpdateError reports a rejected task update. By the time it is returned the
// controller has already reloaded the task list from the service.
type UpdateError struct {
	TaskID string
	Err    error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update task %s: %v", e.TaskID, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }
