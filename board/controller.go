package board

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
	"github.com/jay8860/DD-TaskDashboardClone/temporal"
)

// TaskService is the task-record service the controller reads from and writes to.
type TaskService interface {
	FetchTasks(ctx context.Context) ([]domain.Task, error)
	UpdateTask(ctx context.Context, id string, p domain.Patch) (domain.Task, error)
}

// Phase is the drag state of the controller.
type Phase int

const (
	Idle Phase = iota
	Dragging
	Committing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Committing:
		return "committing"
	}
	return "unknown"
}

// State is a snapshot of the drag state machine.
type State struct {
	Phase      Phase
	ActiveSlot string
	Pending    *domain.Patch
}

// Outcome describes what a drop or schedule request did.
type Outcome int

const (
	// OutcomeNoop means no destination could be resolved; nothing changed.
	OutcomeNoop Outcome = iota
	// OutcomeUnchanged means the slot was dropped back on its own day.
	OutcomeUnchanged
	// OutcomeMoved means the task was updated and the service confirmed it.
	OutcomeMoved
	// OutcomeRolledBack means the service rejected the update and the task list
	// was reloaded, or the task restored if the reload failed.
	OutcomeRolledBack
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "noop"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeMoved:
		return "moved"
	case OutcomeRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// Controller owns the interactive board: the task list as last seen, the
// displayed week and view mode, and the drag state machine.
//
// The slot projection is recomputed from the task list on every call, never
// cached. The lock is released around service calls, so a Refresh finishing
// while an update is pending replaces the task list including the optimistic
// change; the last response to arrive wins.
type Controller struct {
	svc TaskService
	log *log.Logger
	now func() time.Time

	mu    sync.Mutex
	tasks []domain.Task
	week  time.Time
	mode  ViewMode
	state State
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithViewMode sets the initial view mode.
func WithViewMode(m ViewMode) Option {
	return func(c *Controller) { c.mode = m }
}

// NewController creates a controller showing the current week in ViewBoth.
func NewController(svc TaskService, logger *log.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	c := &Controller{svc: svc, log: logger, now: time.Now, mode: ViewBoth}
	for _, opt := range opts {
		opt(c)
	}
	c.week = WeekStart(c.now())
	return c
}

// Load fetches the initial task list.
func (c *Controller) Load(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Refresh replaces the task list with the service's current one. On failure the
// previous list is kept.
func (c *Controller) Refresh(ctx context.Context) error {
	tasks, err := c.svc.FetchTasks(ctx)
	if err != nil {
		return fmt.Errorf("fetch tasks: %w", err)
	}
	c.mu.Lock()
	c.tasks = domain.CloneTasks(tasks)
	c.mu.Unlock()
	return nil
}

// Board projects the current task list onto the displayed week.
func (c *Controller) Board() Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boardLocked()
}

func (c *Controller) boardLocked() Board {
	return Project(c.tasks, Week(c.week), c.mode)
}

// Tasks returns a copy of the current task list.
func (c *Controller) Tasks() []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CloneTasks(c.tasks)
}

// State returns the current drag state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.Pending != nil {
		p := *s.Pending
		s.Pending = &p
	}
	return s
}

// Week returns the first day of the displayed week.
func (c *Controller) Week() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.week
}

// ViewMode returns the displayed view mode.
func (c *Controller) ViewMode() ViewMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetViewMode changes which slots are projected.
func (c *Controller) SetViewMode(m ViewMode) {
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
}

// NextWeek moves the board forward seven days.
func (c *Controller) NextWeek() { c.shiftWeek(1) }

// PrevWeek moves the board back seven days.
func (c *Controller) PrevWeek() { c.shiftWeek(-1) }

func (c *Controller) shiftWeek(n int) {
	c.mu.Lock()
	c.week = ShiftWeek(c.week, n)
	c.mu.Unlock()
}

// GoToToday shows the week containing today.
func (c *Controller) GoToToday() {
	c.mu.Lock()
	c.week = WeekStart(c.now())
	c.mu.Unlock()
}

// SetWeek shows the week containing day.
func (c *Controller) SetWeek(day time.Time) {
	c.mu.Lock()
	c.week = WeekStart(day)
	c.mu.Unlock()
}

// DragStart begins dragging the given slot item.
func (c *Controller) DragStart(slotID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != Idle {
		return ErrNotIdle
	}
	if _, ok := c.boardLocked().Item(slotID); !ok {
		return ErrUnknownSlot
	}
	c.state = State{Phase: Dragging, ActiveSlot: slotID}
	return nil
}

// Cancel aborts the current drag without touching any task.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != Dragging {
		return ErrNotDragging
	}
	c.state = State{}
	return nil
}

// Drop ends the current drag over target, which is either a day column id or
// another slot id. When the destination day differs from the dragged slot's day
// the task is updated optimistically and the change sent to the service. If
// the service rejects it the task list is reloaded and an *UpdateError returned;
// when the reload fails too, the task is put back as it was before the drop.
// A column id may name any day, including one outside the displayed week.
func (c *Controller) Drop(ctx context.Context, target string) (Outcome, error) {
	c.mu.Lock()
	if c.state.Phase != Dragging {
		c.mu.Unlock()
		return OutcomeNoop, ErrNotDragging
	}
	active := c.state.ActiveSlot
	b := c.boardLocked()

	item, ok := b.Item(active)
	if !ok {
		// The slot vanished, e.g. a refresh completed the task mid-drag.
		c.state = State{}
		c.mu.Unlock()
		return OutcomeNoop, nil
	}

	dest, onColumn := ParseDropTarget(target)
	if !onColumn {
		var found bool
		dest, found = ResolveContainerDate(target, b)
		if !found {
			c.state = State{}
			c.mu.Unlock()
			return OutcomeNoop, nil
		}
	}

	if domain.SameDay(dest, item.Date) {
		c.state = State{}
		c.mu.Unlock()
		if !onColumn && target != active {
			return OutcomeUnchanged, ErrReorderUnsupported
		}
		return OutcomeUnchanged, nil
	}

	task, _ := c.findLocked(item.TaskID)
	patch := movePatch(task, item.Kind, dest)
	snap := c.beginCommitLocked(active, item.TaskID, patch)
	c.mu.Unlock()

	return c.commit(ctx, snap, patch)
}

// Schedule sets a task's scheduled date, and optionally time, through the same
// optimistic path as a drop. An empty date clears the scheduling.
func (c *Controller) Schedule(ctx context.Context, taskID, date, clock string) (Outcome, error) {
	var patch domain.Patch
	if strings.TrimSpace(date) == "" {
		patch = domain.Patch{ScheduledDate: domain.Str(""), ScheduledTime: domain.Str("")}
	} else {
		d, ok := domain.ParseDate(date)
		if !ok {
			return OutcomeNoop, fmt.Errorf("%w: %q", ErrInvalidDate, date)
		}
		patch.ScheduledDate = domain.Str(domain.FormatDate(d))
		if clock = strings.TrimSpace(clock); clock != "" {
			if _, err := time.Parse(domain.ClockLayout, clock); err != nil {
				return OutcomeNoop, fmt.Errorf("%w: time %q", ErrInvalidDate, clock)
			}
			patch.ScheduledTime = domain.Str(clock)
		}
	}

	c.mu.Lock()
	if c.state.Phase != Idle {
		c.mu.Unlock()
		return OutcomeNoop, ErrNotIdle
	}
	if _, ok := c.findLocked(taskID); !ok {
		c.mu.Unlock()
		return OutcomeNoop, domain.ErrTaskNotFound
	}
	snap := c.beginCommitLocked(SlotID(taskID, SlotScheduled), taskID, patch)
	c.mu.Unlock()

	return c.commit(ctx, snap, patch)
}

func movePatch(task domain.Task, kind SlotKind, dest time.Time) domain.Patch {
	day := domain.FormatDate(dest)
	if kind == SlotScheduled {
		return domain.Patch{ScheduledDate: domain.Str(day)}
	}
	return temporal.SyncPatch(task, domain.Patch{DeadlineDate: domain.Str(day)})
}

// snapshot holds a task before and after its optimistic change.
type snapshot struct {
	taskID     string
	before     domain.Task
	optimistic domain.Task
	held       bool
}

func (c *Controller) beginCommitLocked(slotID, taskID string, patch domain.Patch) snapshot {
	snap := snapshot{taskID: taskID}
	if i, ok := c.indexLocked(taskID); ok {
		snap.before = c.tasks[i].Clone()
		c.tasks[i] = patch.Apply(c.tasks[i])
		snap.optimistic = c.tasks[i].Clone()
		snap.held = true
	}
	p := patch
	c.state = State{Phase: Committing, ActiveSlot: slotID, Pending: &p}
	return snap
}

// restoreLocked puts back the task as it was before an optimistic change,
// unless something has replaced the optimistic value since.
func (c *Controller) restoreLocked(snap snapshot) bool {
	if !snap.held {
		return false
	}
	i, ok := c.indexLocked(snap.taskID)
	if !ok || !reflect.DeepEqual(c.tasks[i], snap.optimistic) {
		return false
	}
	c.tasks[i] = snap.before
	return true
}

func (c *Controller) commit(ctx context.Context, snap snapshot, patch domain.Patch) (Outcome, error) {
	taskID := snap.taskID
	updated, err := c.svc.UpdateTask(ctx, taskID, patch)
	if err == nil {
		c.mu.Lock()
		if updated.ID == taskID {
			if i, ok := c.indexLocked(taskID); ok {
				c.tasks[i] = updated.Clone()
			}
		}
		c.state = State{}
		c.mu.Unlock()
		return OutcomeMoved, nil
	}

	c.log.WithError(err).WithField("taskId", taskID).Warn("task update rejected; reloading tasks")
	updErr := &UpdateError{TaskID: taskID, Err: err}
	refreshErr := c.Refresh(ctx)

	c.mu.Lock()
	restored := refreshErr != nil && c.restoreLocked(snap)
	c.state = State{}
	c.mu.Unlock()

	if refreshErr != nil {
		c.log.WithError(refreshErr).WithField("restored", restored).Error("reload after rejected update failed")
		return OutcomeRolledBack, errors.Join(updErr, refreshErr)
	}
	return OutcomeRolledBack, updErr
}

func (c *Controller) indexLocked(taskID string) (int, bool) {
	for i := range c.tasks {
		if c.tasks[i].ID == taskID {
			return i, true
		}
	}
	return -1, false
}

func (c *Controller) findLocked(taskID string) (domain.Task, bool) {
	if i, ok := c.indexLocked(taskID); ok {
		return c.tasks[i], true
	}
	return domain.Task{}, false
}
