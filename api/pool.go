package api

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

const (
	minPublishWorkers      = 8
	maxPublishWorkers      = 64
	publishWorkersPerCPU   = 8
	publishWorkersPerConn  = 2
	publishBufferPerWorker = 64
)

// computeWorkerDefaults sizes the publish pool from the downstream queue
// concurrency and the CPU count.
func computeWorkerDefaults(queueConcurrency, cpu int) (workers, buffer int) {
	workers = max(queueConcurrency*publishWorkersPerConn, cpu*publishWorkersPerCPU)
	workers = min(max(workers, minPublishWorkers), maxPublishWorkers)
	return workers, workers * publishBufferPerWorker
}

// Publishers fans each batch out to every publisher in order. All publishers
// are attempted; their errors are joined.
type Publishers []Publisher

func (ps Publishers) PublishEvents(ctx context.Context, evs []domain.Event) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.PublishEvents(ctx, evs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SenderConfig sizes the event sender.
type SenderConfig struct {
	Workers int
	Buffer  int
	Timeout time.Duration
	Handoff time.Duration
}

// SenderConfigFromEnv reads PUBLISH_* variables, defaulting from queueConcurrency
// and the CPU count.
func SenderConfigFromEnv(queueConcurrency int) SenderConfig {
	workers, buffer := computeWorkerDefaults(queueConcurrency, runtime.NumCPU())
	return SenderConfig{
		Workers: envInt("PUBLISH_WORKERS", workers),
		Buffer:  envInt("PUBLISH_BUFFER", buffer),
		Timeout: envDur("PUBLISH_TIMEOUT", 30*time.Second),
		Handoff: envDur("PUBLISH_HANDOFF_TIMEOUT", 15*time.Millisecond),
	}
}

type publishJob struct {
	evs []domain.Event
}

// EventSender publishes task events in the background so request handlers do
// not wait on the queue. When the buffer stays full past the handoff timeout
// the batch is published inline instead.
type EventSender struct {
	pub     Publisher
	log     *log.Logger
	timeout time.Duration
	handoff time.Duration

	mu     sync.RWMutex
	jobs   chan publishJob
	wg     sync.WaitGroup
	closed bool
}

// NewEventSender starts cfg.Workers goroutines publishing through pub.
func NewEventSender(pub Publisher, cfg SenderConfig, logger *log.Logger) *EventSender {
	if logger == nil {
		panic("Logger is not initialized")
	}
	s := &EventSender{
		pub:     pub,
		log:     logger,
		timeout: cfg.Timeout,
		handoff: cfg.Handoff,
		jobs:    make(chan publishJob, max(cfg.Buffer, 0)),
	}
	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	logger.Infof("event sender started, workers: %d, buffer: %d, timeout: %v, handoff: %v", cfg.Workers, cfg.Buffer, cfg.Timeout, cfg.Handoff)
	return s
}

func (s *EventSender) worker(id int) {
	defer s.wg.Done()
	for j := range s.jobs {
		if err := s.publish(j); err != nil {
			s.log.Errorf("publish failed, err: %v, count: %d, worker: %d", err, len(j.evs), id)
		}
	}
}

func (s *EventSender) publish(j publishJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.pub.PublishEvents(ctx, j.evs)
}

// Send queues evs for publishing, falling back to an inline publish when the
// pool is saturated or stopped.
func (s *EventSender) Send(evs ...domain.Event) {
	if s == nil || len(evs) == 0 {
		return
	}
	job := publishJob{evs: evs}
	if s.tryEnqueue(job) {
		return
	}
	s.log.Warn("publish buffer saturated; publishing inline")
	if err := s.publish(job); err != nil {
		s.log.Errorf("publish inline failed: %v", err)
	}
}

func (s *EventSender) tryEnqueue(job publishJob) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}

	if ok, closed := trySendNonBlocking(s.jobs, job); closed {
		return false
	} else if ok {
		return true
	}

	if s.handoff <= 0 {
		return false
	}

	timer := time.NewTimer(s.handoff)
	defer timer.Stop()

	ok, closed := sendWithTimer(s.jobs, job, timer.C)
	if closed {
		return false
	}
	return ok
}

// Close stops accepting jobs and waits for queued batches to be published.
func (s *EventSender) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func trySendNonBlocking(ch chan publishJob, job publishJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan publishJob, job publishJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	case <-timer:
		return false, false
	}
}
