// Package relay moves task events from the durable event queue to live board
// clients. For every event it drops the shared task-list cache and republishes
// the event on the Redis updates channel.
package relay

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
	"github.com/jay8860/DD-TaskDashboardClone/storage"
)

// Source is the queue the relay drains.
type Source interface {
	Receive(ctx context.Context) ([]storage.QueueMessage, error)
	Delete(ctx context.Context, msg storage.QueueMessage) error
}

// Publisher delivers events to live clients.
type Publisher interface {
	PublishEvents(ctx context.Context, evs []domain.Event) error
}

// EvictFunc drops cached task lists.
type EvictFunc func(ctx context.Context) error

const (
	defaultIdle       = time.Second
	defaultMaxRetries = 5
)

// Relay drains a Source into a Publisher.
type Relay struct {
	src        Source
	pub        Publisher
	evict      EvictFunc
	log        *log.Logger
	idle       time.Duration
	maxRetries int64
}

// Option configures a Relay.
type Option func(*Relay)

// WithIdle sets the pause after an empty receive or a receive error.
func WithIdle(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.idle = d
		}
	}
}

// WithMaxRetries sets how many deliveries a message gets before it is dropped.
func WithMaxRetries(n int64) Option {
	return func(r *Relay) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// New creates a Relay. evict may be nil when no cache is shared.
func New(src Source, pub Publisher, evict EvictFunc, logger *log.Logger, opts ...Option) *Relay {
	if logger == nil {
		logger = log.StandardLogger()
	}
	r := &Relay{src: src, pub: pub, evict: evict, log: logger, idle: defaultIdle, maxRetries: defaultMaxRetries}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process handles one message. Undecodable messages and messages past the
// retry limit are deleted without publishing. A failed publish leaves the
// message on the queue so it is delivered again once its visibility timeout
// ends.
func (r *Relay) Process(ctx context.Context, msg storage.QueueMessage) error {
	entry := r.log.WithField("messageId", msg.ID)

	var ev domain.Event
	if err := sonic.UnmarshalString(msg.Text, &ev); err != nil || ev.Type == "" {
		entry.WithError(err).Warn("dropping malformed task event")
		return r.src.Delete(ctx, msg)
	}
	entry = entry.WithFields(log.Fields{"eventType": ev.Type, "taskId": ev.TaskID})

	if msg.Dequeued > r.maxRetries {
		entry.WithField("deliveries", msg.Dequeued).Error("giving up on task event")
		return r.src.Delete(ctx, msg)
	}

	if r.evict != nil {
		if err := r.evict(ctx); err != nil {
			entry.WithError(err).Warn("failed to evict tasks cache")
		}
	}
	if err := r.pub.PublishEvents(ctx, []domain.Event{ev}); err != nil {
		entry.WithError(err).Error("unable to publish task event")
		return err
	}
	entry.Debug("task event relayed")
	return r.src.Delete(ctx, msg)
}

// Run drains the source until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	for {
		msgs, err := r.src.Receive(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			r.log.WithError(err).Warn("receive task events")
		}
		for _, m := range msgs {
			if err := r.Process(ctx, m); err != nil && ctx.Err() == nil {
				r.log.WithError(err).WithField("messageId", m.ID).Debug("task event left on queue")
			}
		}
		if err == nil && len(msgs) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.idle):
		}
	}
}
