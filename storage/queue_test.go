package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

type fakeDequeuer struct {
	msgs     []*azqueue.DequeuedMessage
	err      error
	gotN     int32
	gotVis   int32
	removed  []string
	removeFn func(id string) error
}

func (f *fakeDequeuer) dequeue(_ context.Context, n, vis int32) ([]*azqueue.DequeuedMessage, error) {
	f.gotN, f.gotVis = n, vis
	return f.msgs, f.err
}

func (f *fakeDequeuer) remove(_ context.Context, id, _ string) error {
	f.removed = append(f.removed, id)
	if f.removeFn != nil {
		return f.removeFn(id)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func TestEventQueueReceive(t *testing.T) {
	f := &fakeDequeuer{msgs: []*azqueue.DequeuedMessage{
		{MessageID: ptr("m1"), PopReceipt: ptr("r1"), MessageText: ptr(`{"id":"e1"}`), DequeueCount: ptr(int64(2))},
		{MessageID: ptr("m2")},
		nil,
		{MessageID: ptr("m3"), PopReceipt: ptr("r3")},
	}}
	q := newEventQueue(f, 100, 45*time.Second)

	got, err := q.Receive(context.Background())
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if f.gotN != maxDequeueBatch || f.gotVis != 45 {
		t.Fatalf("unexpected request n=%d vis=%d", f.gotN, f.gotVis)
	}
	want := []QueueMessage{
		{ID: "m1", PopReceipt: "r1", Text: `{"id":"e1"}`, Dequeued: 2},
		{ID: "m3", PopReceipt: "r3"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestEventQueueDefaults(t *testing.T) {
	q := newEventQueue(&fakeDequeuer{}, 0, 0)
	if q.batch != defaultDequeueBatch || q.visibility != defaultVisibility {
		t.Fatalf("unexpected defaults %d %s", q.batch, q.visibility)
	}
}

func TestEventQueueDeleteIgnoresMissing(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeDequeuer{removeFn: func(id string) error {
		if id == "gone" {
			return &azcore.ResponseError{StatusCode: 404}
		}
		return boom
	}}
	q := newEventQueue(f, 1, time.Second)

	if err := q.Delete(context.Background(), QueueMessage{ID: "gone"}); err != nil {
		t.Fatalf("expected missing message to count as deleted, got %v", err)
	}
	if err := q.Delete(context.Background(), QueueMessage{ID: "x"}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestEvictTasks(t *testing.T) {
	_, rc := newTestRedis(t)
	ctx := context.Background()
	if err := rc.Set(ctx, tasksCacheKey("p1"), "[]", 0).Err(); err != nil {
		t.Fatal(err)
	}
	if err := EvictTasks(ctx, rc, "p1"); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if n, _ := rc.Exists(ctx, tasksCacheKey("p1")).Result(); n != 0 {
		t.Fatal("expected key removed")
	}
	if err := EvictTasks(ctx, nil, "p1"); err != nil {
		t.Fatalf("nil client: %v", err)
	}
}
