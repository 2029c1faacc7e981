package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// QueueMessage is one dequeued task event awaiting deletion.
type QueueMessage struct {
	ID         string
	PopReceipt string
	Text       string
	Dequeued   int64
}

type dequeueClient interface {
	dequeue(ctx context.Context, n, visibilitySeconds int32) ([]*azqueue.DequeuedMessage, error)
	remove(ctx context.Context, id, receipt string) error
}

type azureDequeuer struct {
	q *azqueue.QueueClient
}

func (a azureDequeuer) dequeue(ctx context.Context, n, vis int32) ([]*azqueue.DequeuedMessage, error) {
	resp, err := a.q.DequeueMessages(ctx, &azqueue.DequeueMessagesOptions{
		NumberOfMessages:  &n,
		VisibilityTimeout: &vis,
	})
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (a azureDequeuer) remove(ctx context.Context, id, receipt string) error {
	_, err := a.q.DeleteMessage(ctx, id, receipt, nil)
	return err
}

// EventQueue reads the task event queue that Storage.PublishEvents writes to.
type EventQueue struct {
	client     dequeueClient
	batch      int32
	visibility time.Duration
}

const (
	defaultDequeueBatch = 16
	maxDequeueBatch     = 32
	defaultVisibility   = 30 * time.Second
)

// NewEventQueue connects to the named queue. batch is capped at the Azure
// limit of 32 messages per receive.
func NewEventQueue(connStr, name string, batch int32, visibility time.Duration) (*EventQueue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 30,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, &opts)
	if err != nil {
		return nil, err
	}
	return newEventQueue(azureDequeuer{q}, batch, visibility), nil
}

func newEventQueue(c dequeueClient, batch int32, visibility time.Duration) *EventQueue {
	if batch <= 0 {
		batch = defaultDequeueBatch
	}
	if batch > maxDequeueBatch {
		batch = maxDequeueBatch
	}
	if visibility <= 0 {
		visibility = defaultVisibility
	}
	return &EventQueue{client: c, batch: batch, visibility: visibility}
}

// Receive dequeues up to one batch of messages. They stay invisible to other
// readers until the visibility timeout passes or they are deleted.
func (q *EventQueue) Receive(ctx context.Context) ([]QueueMessage, error) {
	msgs, err := q.client.dequeue(ctx, q.batch, int32(q.visibility/time.Second))
	if err != nil {
		return nil, err
	}
	out := make([]QueueMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || m.MessageID == nil || m.PopReceipt == nil {
			continue
		}
		msg := QueueMessage{ID: *m.MessageID, PopReceipt: *m.PopReceipt}
		if m.MessageText != nil {
			msg.Text = *m.MessageText
		}
		if m.DequeueCount != nil {
			msg.Dequeued = *m.DequeueCount
		}
		out = append(out, msg)
	}
	return out, nil
}

// Delete removes a processed message. A message that is already gone counts
// as deleted.
func (q *EventQueue) Delete(ctx context.Context, msg QueueMessage) error {
	err := q.client.remove(ctx, msg.ID, msg.PopReceipt)
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 404 {
		return nil
	}
	return err
}
