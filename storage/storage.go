package storage

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	azruntime "github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

// Mutator rewrites the current state of a task during an update.
type Mutator func(current domain.Task) (domain.Task, error)

// Backend is a task-record store.
type Backend interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	CreateTask(ctx context.Context, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, fn Mutator) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type entityTable interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
	NewListEntitiesPager(options *aztables.ListEntitiesOptions) *azruntime.Pager[aztables.ListEntitiesResponse]
}

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
	GetProperties(ctx context.Context, o *azqueue.GetQueuePropertiesOptions) (azqueue.GetQueuePropertiesResponse, error)
}

const (
	defaultQueueConcurrency = 8
	queuePerCPU             = 10
	maxQueueConcurrency     = 128
	defaultUpdateRetries    = 5
)

func queueConcurrencyForCPU(cpu int) int {
	if cpu < 1 {
		return defaultQueueConcurrency
	}
	n := cpu * queuePerCPU
	if n > maxQueueConcurrency {
		return maxQueueConcurrency
	}
	return n
}

// Storage keeps tasks in one partition of an Azure table and queues task events
// for downstream consumers.
type Storage struct {
	taskTable        entityTable
	partition        string
	eventQueue       queueClient
	queueConcurrency int
	updateRetries    int
}

var _ Backend = (*Storage)(nil)

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, partition, eventsQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	s := &Storage{
		taskTable:        svc.NewClient(tasksTable),
		partition:        partition,
		queueConcurrency: queueConcurrencyForCPU(runtime.NumCPU()),
		updateRetries:    defaultUpdateRetries,
	}
	if eventsQueue == "" {
		return s, nil
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	s.eventQueue = q
	return s, nil
}

// ListTasks returns every task in the partition.
func (s *Storage) ListTasks(ctx context.Context) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + s.partition + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// GetTask returns a single task or domain.ErrTaskNotFound.
func (s *Storage) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, _, err := s.getTask(ctx, id)
	return t, err
}

func (s *Storage) getTask(ctx context.Context, id string) (domain.Task, azcore.ETag, error) {
	resp, err := s.taskTable.GetEntity(ctx, s.partition, id, nil)
	if err != nil {
		return domain.Task{}, "", translateError(err)
	}
	t, err := decodeTaskEntity(resp.Value)
	if err != nil {
		return domain.Task{}, "", err
	}
	return t, resp.ETag, nil
}

// CreateTask inserts a new task, assigning an id when none is set.
func (s *Storage) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	payload, err := sonic.Marshal(newTaskEntity(s.partition, t))
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.taskTable.AddEntity(ctx, payload, nil); err != nil {
		return domain.Task{}, fmt.Errorf("add task %s: %w", t.ID, translateError(err))
	}
	return t, nil
}

// UpdateTask reads the task, applies fn and writes the result conditioned on the
// ETag that was read. Conflicting writes are retried against a fresh read.
func (s *Storage) UpdateTask(ctx context.Context, id string, fn Mutator) (domain.Task, error) {
	for attempt := 0; ; attempt++ {
		current, etag, err := s.getTask(ctx, id)
		if err != nil {
			return domain.Task{}, err
		}
		next, err := fn(current.Clone())
		if err != nil {
			return domain.Task{}, err
		}
		next.ID = id
		payload, err := sonic.Marshal(newTaskEntity(s.partition, next))
		if err != nil {
			return domain.Task{}, err
		}
		_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeReplace})
		if err == nil {
			return next, nil
		}
		err = translateError(err)
		if !errors.Is(err, domain.ErrConcurrencyConflict) || attempt >= s.updateRetries {
			return domain.Task{}, fmt.Errorf("update task %s: %w", id, err)
		}
		log.WithFields(log.Fields{"task": id, "attempt": attempt + 1}).Debug("task changed concurrently; retrying update")
	}
}

// DeleteTask removes a task.
func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.taskTable.DeleteEntity(ctx, s.partition, id, nil); err != nil {
		return translateError(err)
	}
	return nil
}

// PublishEvents sends the given events to the event queue.
func (s *Storage) PublishEvents(ctx context.Context, evs []domain.Event) error {
	if s.eventQueue == nil || len(evs) == 0 {
		return nil
	}
	limit := s.queueConcurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range evs {
		ev := evs[i]
		g.Go(func() error {
			data, err := sonic.Marshal(ev)
			if err != nil {
				return err
			}
			_, err = s.eventQueue.EnqueueMessage(gctx, string(data), nil)
			return err
		})
	}
	return g.Wait()
}

// QueueConcurrency is the number of parallel enqueue calls per publish.
func (s *Storage) QueueConcurrency() int {
	return s.queueConcurrency
}

// Ping checks that the event queue is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if s.eventQueue == nil {
		return nil
	}
	_, err := s.eventQueue.GetProperties(ctx, nil)
	return err
}

func translateError(err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}
	switch respErr.StatusCode {
	case 404:
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, respErr.ErrorCode)
	case 409, 412:
		return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, respErr.ErrorCode)
	}
	return err
}
