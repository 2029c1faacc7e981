package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

var _ Backend = (*PgStore)(nil)

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const taskColumns = `id, task_number, description, assigned_agency, priority, allocated_date, time_given,
	deadline_date, completion_date, status, scheduled_date, scheduled_time, position, is_pinned, remarks, source`

// EnsureTable creates the tasks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id              TEXT PRIMARY KEY,
			task_number     TEXT NOT NULL DEFAULT '',
			description     TEXT NOT NULL DEFAULT '',
			assigned_agency TEXT NOT NULL DEFAULT '',
			priority        TEXT NOT NULL DEFAULT '',
			allocated_date  TEXT NOT NULL DEFAULT '',
			time_given      TEXT NOT NULL DEFAULT '',
			deadline_date   TEXT NOT NULL DEFAULT '',
			completion_date TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT 'Pending',
			scheduled_date  TEXT NOT NULL DEFAULT '',
			scheduled_time  TEXT NOT NULL DEFAULT '',
			position        DOUBLE PRECISION,
			is_pinned       BOOLEAN NOT NULL DEFAULT FALSE,
			remarks         TEXT NOT NULL DEFAULT '',
			source          TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ DEFAULT NOW(),
			updated_at      TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_deadline ON tasks(deadline_date) WHERE deadline_date != ''`)
	return err
}

// ListTasks returns all tasks in creation order.
func (s *PgStore) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask retrieves a single task by ID.
func (s *PgStore) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task %s: %w", id, translatePgError(err))
	}
	return t, nil
}

// CreateTask inserts a new task.
func (s *PgStore) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.ID == "" {
		t.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now().Truncate(time.Microsecond)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)`,
		append(taskArgs(t), now)...)
	if err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", translatePgError(err))
	}
	return t, nil
}

// UpdateTask locks the row, applies fn and writes every column back.
func (s *PgStore) UpdateTask(ctx context.Context, id string, fn Mutator) (domain.Task, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Task{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task %s: %w", id, translatePgError(err))
	}
	next, err := fn(current)
	if err != nil {
		return domain.Task{}, err
	}
	next.ID = id

	_, err = tx.Exec(ctx, `
		UPDATE tasks SET task_number = $2, description = $3, assigned_agency = $4, priority = $5,
			allocated_date = $6, time_given = $7, deadline_date = $8, completion_date = $9, status = $10,
			scheduled_date = $11, scheduled_time = $12, position = $13, is_pinned = $14, remarks = $15,
			source = $16, updated_at = $17
		WHERE id = $1`,
		append(taskArgs(next), time.Now().Truncate(time.Microsecond))...)
	if err != nil {
		return domain.Task{}, fmt.Errorf("update task %s: %w", id, translatePgError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Task{}, fmt.Errorf("commit task %s: %w", id, err)
	}
	return next, nil
}

// DeleteTask removes a task.
func (s *PgStore) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func taskArgs(t domain.Task) []any {
	return []any{
		t.ID, t.TaskNumber, t.Description, t.AssignedAgency, t.Priority, t.AllocatedDate, t.TimeGiven,
		t.DeadlineDate, t.CompletionDate, string(t.Status), t.ScheduledDate, t.ScheduledTime, t.Position,
		t.IsPinned, t.Remarks, t.Source,
	}
}

func scanTask(row pgx.Row) (domain.Task, error) {
	var (
		t      domain.Task
		status string
	)
	err := row.Scan(&t.ID, &t.TaskNumber, &t.Description, &t.AssignedAgency, &t.Priority, &t.AllocatedDate,
		&t.TimeGiven, &t.DeadlineDate, &t.CompletionDate, &status, &t.ScheduledDate, &t.ScheduledTime,
		&t.Position, &t.IsPinned, &t.Remarks, &t.Source)
	if err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.Status(status)
	return t, nil
}

func translatePgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrTaskNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, pgErr.ConstraintName)
	}
	return err
}
