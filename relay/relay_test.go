package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
	"github.com/jay8860/DD-TaskDashboardClone/storage"
)

type fakeSource struct {
	mu      sync.Mutex
	batches [][]storage.QueueMessage
	err     error
	deleted []string
}

func (f *fakeSource) Receive(context.Context) ([]storage.QueueMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		err := f.err
		f.err = nil
		return nil, err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeSource) Delete(_ context.Context, m storage.QueueMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, m.ID)
	return nil
}

func (f *fakeSource) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type recordingPublisher struct {
	mu  sync.Mutex
	evs []domain.Event
	err error
}

func (p *recordingPublisher) PublishEvents(_ context.Context, evs []domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.evs = append(p.evs, evs...)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.evs)
}

const goodEvent = `{"id":"e1","type":"task-updated","taskId":"a","timestamp":1}`

func TestProcessPublishesEvictsAndDeletes(t *testing.T) {
	logger, _ := test.NewNullLogger()
	src := &fakeSource{}
	pub := &recordingPublisher{}
	evicted := 0
	r := New(src, pub, func(context.Context) error { evicted++; return nil }, logger)

	if err := r.Process(context.Background(), storage.QueueMessage{ID: "m1", Text: goodEvent, Dequeued: 1}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if pub.count() != 1 || pub.evs[0].TaskID != "a" || pub.evs[0].Type != domain.EventTaskUpdated {
		t.Fatalf("unexpected published events %+v", pub.evs)
	}
	if evicted != 1 {
		t.Fatalf("expected cache eviction, got %d", evicted)
	}
	if ids := src.deletedIDs(); len(ids) != 1 || ids[0] != "m1" {
		t.Fatalf("expected message deleted, got %v", ids)
	}
}

func TestProcessDropsMalformed(t *testing.T) {
	logger, hook := test.NewNullLogger()
	src := &fakeSource{}
	pub := &recordingPublisher{}
	r := New(src, pub, nil, logger)

	for _, text := range []string{"not json", `{"id":"e1"}`} {
		if err := r.Process(context.Background(), storage.QueueMessage{ID: text, Text: text}); err != nil {
			t.Fatalf("process %q: %v", text, err)
		}
	}
	if pub.count() != 0 {
		t.Fatal("malformed events must not be published")
	}
	if len(src.deletedIDs()) != 2 {
		t.Fatalf("expected both messages deleted, got %v", src.deletedIDs())
	}
	if len(hook.AllEntries()) != 2 {
		t.Fatalf("expected warnings, got %d", len(hook.AllEntries()))
	}
}

func TestProcessKeepsMessageWhenPublishFails(t *testing.T) {
	logger, _ := test.NewNullLogger()
	src := &fakeSource{}
	boom := errors.New("redis down")
	r := New(src, &recordingPublisher{err: boom}, nil, logger)

	if err := r.Process(context.Background(), storage.QueueMessage{ID: "m1", Text: goodEvent}); !errors.Is(err, boom) {
		t.Fatalf("expected publish error, got %v", err)
	}
	if len(src.deletedIDs()) != 0 {
		t.Fatal("message should stay on the queue")
	}
}

func TestProcessGivesUpAfterRetries(t *testing.T) {
	logger, hook := test.NewNullLogger()
	src := &fakeSource{}
	pub := &recordingPublisher{}
	r := New(src, pub, nil, logger, WithMaxRetries(2))

	if err := r.Process(context.Background(), storage.QueueMessage{ID: "m1", Text: goodEvent, Dequeued: 3}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if pub.count() != 0 || len(src.deletedIDs()) != 1 {
		t.Fatalf("expected message dropped unpublished")
	}
	if hook.LastEntry() == nil || hook.LastEntry().Message != "giving up on task event" {
		t.Fatalf("unexpected log %+v", hook.LastEntry())
	}
}

func TestRunRelaysToRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rc.Set(ctx, "tasks:p1", "[]", 0).Err(); err != nil {
		t.Fatal(err)
	}

	sub := rc.Subscribe(ctx, "task-updates")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	src := &fakeSource{
		err:     errors.New("transient"),
		batches: [][]storage.QueueMessage{{{ID: "m1", Text: goodEvent, Dequeued: 1}}},
	}
	logger, _ := test.NewNullLogger()
	evict := func(ctx context.Context) error { return storage.EvictTasks(ctx, rc, "p1") }
	r := New(src, storage.NewNotifier(rc, "task-updates"), evict, logger, WithIdle(5*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case msg := <-sub.Channel():
		if msg.Payload == "" {
			t.Fatal("empty payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event relayed")
	}
	if mr.Exists("tasks:p1") {
		t.Fatal("expected cache evicted")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
	if ids := src.deletedIDs(); len(ids) != 1 || ids[0] != "m1" {
		t.Fatalf("expected m1 deleted, got %v", ids)
	}
}
