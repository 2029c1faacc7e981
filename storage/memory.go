package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

// MemStore keeps tasks in process memory. It backs local runs with
// STORAGE_BACKEND=memory and end to end tests.
type MemStore struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
	order []string
}

// NewMemStore returns a store seeded with tasks, in order.
func NewMemStore(seed ...domain.Task) *MemStore {
	m := &MemStore{tasks: make(map[string]domain.Task, len(seed))}
	for _, t := range seed {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if _, dup := m.tasks[t.ID]; !dup {
			m.order = append(m.order, t.ID)
		}
		m.tasks[t.ID] = t.Clone()
	}
	return m
}

// ListTasks returns every task in insertion order.
func (m *MemStore) ListTasks(context.Context) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id].Clone())
	}
	return out, nil
}

func (m *MemStore) GetTask(_ context.Context, id string) (domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("get task %s: %w", id, domain.ErrTaskNotFound)
	}
	return t.Clone(), nil
}

func (m *MemStore) CreateTask(_ context.Context, t domain.Task) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.Must(uuid.NewV7()).String()
	}
	if _, ok := m.tasks[t.ID]; ok {
		return domain.Task{}, fmt.Errorf("create task %s: %w", t.ID, domain.ErrConcurrencyConflict)
	}
	m.tasks[t.ID] = t.Clone()
	m.order = append(m.order, t.ID)
	return t, nil
}

// UpdateTask applies fn under the store lock.
func (m *MemStore) UpdateTask(_ context.Context, id string, fn Mutator) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("get task %s: %w", id, domain.ErrTaskNotFound)
	}
	next, err := fn(cur.Clone())
	if err != nil {
		return domain.Task{}, err
	}
	next.ID = id
	m.tasks[id] = next.Clone()
	return next, nil
}

func (m *MemStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("delete task %s: %w", id, domain.ErrTaskNotFound)
	}
	delete(m.tasks, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
