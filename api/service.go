package api

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jay8860/DD-TaskDashboardClone/board"
	"github.com/jay8860/DD-TaskDashboardClone/domain"
	"github.com/jay8860/DD-TaskDashboardClone/due"
	"github.com/jay8860/DD-TaskDashboardClone/temporal"
)

var (
	// ErrInvalidReschedule is returned when a reschedule request names neither or
	// both of its modes.
	ErrInvalidReschedule = errors.New("exactly one of extend_days or days_from_today is required")
	// ErrNoTasks is returned by bulk operations given an empty id list.
	ErrNoTasks = errors.New("no tasks given")
)

// SourceManual marks tasks created through the API rather than imported.
const SourceManual = "Manual"

// TaskView is a task annotated with its live classification.
type TaskView struct {
	domain.Task
	DisplayStatus domain.Status `json:"display_status"`
	DueLabel      string        `json:"due_label"`
	DueBucket     due.Bucket    `json:"due_bucket"`
	NearDue       bool          `json:"near_due"`
}

// Sort keys accepted by List.
const (
	SortDueIn        = "due_in"
	SortDeadlineDate = "deadline_date"
	SortTaskNumber   = "task_number"
)

// ListQuery filters and orders a task listing. Empty fields do not filter.
type ListQuery struct {
	Agencies []string
	Statuses []string
	Search   string
	Sort     string
	Dir      due.Direction
}

// RescheduleRequest moves the deadline of several tasks at once. Exactly one
// of ExtendDays and DaysFromToday must be set.
type RescheduleRequest struct {
	IDs           []string `json:"ids"`
	ExtendDays    *int     `json:"extend_days,omitempty"`
	DaysFromToday *int     `json:"days_from_today,omitempty"`
}

// Service implements the task-record operations on top of a Store. Every write
// recomputes the task status and emits a change event.
type Service struct {
	store  Store
	events *EventSender
	log    *log.Logger
	now    func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithServiceClock overrides the wall clock.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. events may be nil, in which case no change
// events are emitted.
func NewService(store Store, events *EventSender, logger *log.Logger, opts ...ServiceOption) *Service {
	s := &Service{store: store, events: events, log: logger, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// List returns the filtered, annotated and ordered task listing.
func (s *Service) List(ctx context.Context, q ListQuery) ([]TaskView, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	tasks = slices.DeleteFunc(tasks, func(t domain.Task) bool { return !q.matches(t, now) })
	sortTasks(tasks, now, q.Sort, q.Dir)

	views := make([]TaskView, len(tasks))
	for i, t := range tasks {
		views[i] = annotate(t, now)
	}
	return views, nil
}

func (q ListQuery) matches(t domain.Task, now time.Time) bool {
	if len(q.Agencies) > 0 && !containsFold(q.Agencies, t.AssignedAgency) {
		return false
	}
	if len(q.Statuses) > 0 && !containsFold(q.Statuses, string(due.StatusFor(t, now))) {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(t.Description), needle) &&
			!strings.Contains(strings.ToLower(t.TaskNumber), needle) {
			return false
		}
	}
	return true
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}

func annotate(t domain.Task, now time.Time) TaskView {
	c := due.Classify(t, now)
	return TaskView{
		Task:          t,
		DisplayStatus: c.Status,
		DueLabel:      c.Label,
		DueBucket:     c.Bucket,
		NearDue:       c.NearDue,
	}
}

func sortTasks(tasks []domain.Task, now time.Time, key string, dir due.Direction) {
	var cmp func(a, b domain.Task) int
	switch key {
	case SortDeadlineDate:
		cmp = compareDeadline
	case SortTaskNumber:
		cmp = func(a, b domain.Task) int {
			return compareTaskNumbers(a.TaskNumber, b.TaskNumber)
		}
	default:
		due.Sort(tasks, now, dir)
		return
	}
	slices.SortStableFunc(tasks, func(a, b domain.Task) int {
		if dir == due.Descending {
			return -cmp(a, b)
		}
		return cmp(a, b)
	})
}

// compareDeadline orders by deadline date; tasks without one sort last.
func compareDeadline(a, b domain.Task) int {
	da, okA := domain.ParseDate(a.DeadlineDate)
	db, okB := domain.ParseDate(b.DeadlineDate)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	return da.Compare(db)
}

var taskNumberPattern = regexp.MustCompile(`(?i)^\s*task\s+(\d+)\s*$`)

func taskNumberOf(s string) (int, bool) {
	m := taskNumberPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func compareTaskNumbers(a, b string) int {
	na, okA := taskNumberOf(a)
	nb, okB := taskNumberOf(b)
	if okA && okB {
		return na - nb
	}
	if okA != okB {
		if okA {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// nextTaskNumber returns "Task N" where N is one more than the highest
// numbered task.
func nextTaskNumber(tasks []domain.Task) string {
	highest := 0
	for _, t := range tasks {
		if n, ok := taskNumberOf(t.TaskNumber); ok && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("Task %d", highest+1)
}

// Stats returns the dashboard summary.
func (s *Service) Stats(ctx context.Context) (due.Stats, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return due.Stats{}, err
	}
	return due.Summarize(tasks, s.now()), nil
}

// Create stores a new task. The allocation date defaults to today, the task
// number is assigned when absent, and whichever of duration and deadline was
// given is used to derive the other.
func (s *Service) Create(ctx context.Context, t domain.Task) (domain.Task, error) {
	now := s.now()
	t.ID = ""
	if t.Source == "" {
		t.Source = SourceManual
	}
	if strings.TrimSpace(t.AllocatedDate) == "" {
		t.AllocatedDate = domain.FormatDate(now)
	}
	if strings.TrimSpace(t.TaskNumber) == "" {
		existing, err := s.store.ListTasks(ctx)
		if err != nil {
			return domain.Task{}, err
		}
		t.TaskNumber = nextTaskNumber(existing)
	}

	tr := temporal.Of(t)
	switch {
	case t.TimeGiven != "" && t.DeadlineDate == "":
		tr = temporal.Sync(tr, temporal.FieldTimeGiven, t.TimeGiven)
	case t.DeadlineDate != "" && t.TimeGiven == "":
		tr = temporal.Sync(tr, temporal.FieldDeadlineDate, t.DeadlineDate)
	}
	t.AllocatedDate, t.TimeGiven, t.DeadlineDate = tr.AllocatedDate, tr.TimeGiven, tr.DeadlineDate
	t.Status = due.AuthoritativeStatus(t, now)

	created, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return domain.Task{}, err
	}
	s.emit(domain.EventTaskCreated, created)
	return created, nil
}

// Update applies a partial update, completing a single temporal edit with its
// dependent field and recomputing the status.
func (s *Service) Update(ctx context.Context, id string, p domain.Patch) (domain.Task, error) {
	updated, err := s.store.UpdateTask(ctx, id, func(cur domain.Task) (domain.Task, error) {
		next := temporal.SyncPatch(cur, p).Apply(cur)
		next.Status = due.AuthoritativeStatus(next, s.now())
		return next, nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	s.emit(domain.EventTaskUpdated, updated)
	return updated, nil
}

// BulkUpdate applies each item in turn. Missing tasks and empty patches are
// skipped and not counted; any other failure stops the batch, leaving items
// already applied in place.
func (s *Service) BulkUpdate(ctx context.Context, items []domain.BulkItem) (int, error) {
	updated := 0
	for _, it := range items {
		if it.ID == "" || it.Patch.IsEmpty() {
			continue
		}
		_, err := s.Update(ctx, it.ID, it.Patch)
		if errors.Is(err, domain.ErrTaskNotFound) {
			s.log.WithField("task", it.ID).Debug("bulk update skipped missing task")
			continue
		}
		if err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// Reschedule moves the deadline of every listed task, keeping the duration in
// step. Missing tasks are skipped.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (int, error) {
	if (req.ExtendDays == nil) == (req.DaysFromToday == nil) {
		return 0, ErrInvalidReschedule
	}
	if len(req.IDs) == 0 {
		return 0, ErrNoTasks
	}
	moved := 0
	for _, id := range req.IDs {
		updated, err := s.store.UpdateTask(ctx, id, func(cur domain.Task) (domain.Task, error) {
			now := s.now()
			before := temporal.Of(cur)
			var after temporal.Triple
			if req.ExtendDays != nil {
				after = temporal.Extend(before, *req.ExtendDays, now)
			} else {
				after = temporal.DeadlineFromToday(before, now, *req.DaysFromToday)
			}
			next := temporal.Patch(before, after).Apply(cur)
			next.Status = due.AuthoritativeStatus(next, now)
			return next, nil
		})
		if errors.Is(err, domain.ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return moved, err
		}
		s.emit(domain.EventTaskUpdated, updated)
		moved++
	}
	return moved, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.emit(domain.EventTaskDeleted, domain.Task{ID: id})
	return nil
}

// Board projects the open tasks onto the week containing weekOf.
func (s *Service) Board(ctx context.Context, weekOf time.Time, mode board.ViewMode) (board.Board, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return board.Board{}, err
	}
	return board.Project(tasks, board.Week(board.WeekStart(weekOf)), mode), nil
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *Service) emit(kind string, t domain.Task) {
	if s.events == nil {
		return
	}
	ev := domain.Event{
		ID:        uuid.NewString(),
		Type:      kind,
		TaskID:    t.ID,
		Timestamp: nextTimestamp(),
	}
	if kind != domain.EventTaskDeleted {
		data, err := sonic.Marshal(t)
		if err != nil {
			s.log.WithError(err).WithField("task", t.ID).Error("encode task event")
			return
		}
		ev.Data = data
	}
	s.events.Send(ev)
}
