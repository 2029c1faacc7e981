package storage

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

// Notifier publishes task events on a Redis channel for live board clients.
type Notifier struct {
	client  *redis.Client
	channel string
}

// NewNotifier creates a Notifier for the given channel.
func NewNotifier(client *redis.Client, channel string) *Notifier {
	return &Notifier{client: client, channel: channel}
}

// PublishEvents sends each event as one message in a single pipeline.
func (n *Notifier) PublishEvents(ctx context.Context, evs []domain.Event) error {
	if n == nil || n.client == nil || len(evs) == 0 {
		return nil
	}
	payloads := make([][]byte, len(evs))
	for i := range evs {
		data, err := sonic.Marshal(evs[i])
		if err != nil {
			return err
		}
		payloads[i] = data
	}
	_, err := n.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range payloads {
			pipe.Publish(ctx, n.channel, p)
		}
		return nil
	})
	return err
}
