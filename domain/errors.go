package domain

import "errors"

var (
	// ErrTaskNotFound is returned when a task id does not exist in the record service.
	ErrTaskNotFound = errors.New("task not found")
	// ErrConcurrencyConflict signals an optimistic concurrency failure while writing a task.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)
