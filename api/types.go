package api

import (
	"context"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
	"github.com/jay8860/DD-TaskDashboardClone/storage"
)

// Store abstracts task persistence for the service.
type Store interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	CreateTask(ctx context.Context, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, fn storage.Mutator) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Publisher delivers task events to a downstream channel.
type Publisher interface {
	PublishEvents(ctx context.Context, evs []domain.Event) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents processing of duplicate bulk requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when processing fails.
	Remove(ctx context.Context, userID, key string) error
}
