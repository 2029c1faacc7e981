package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

const (
	sseDataPrefix     = "data: "
	sseEventTask      = "event: task\n"
	sseKeepAlive      = ": keepalive\n\n"
	streamClientQueue = 16
	defaultHeartbeat  = 25 * time.Second
)

// Broker fans encoded task events out to connected stream clients. Slow
// clients miss events rather than block the broadcast.
type Broker struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[chan []byte]struct{})}
}

func (b *Broker) subscribe() chan []byte {
	ch := make(chan []byte, streamClientQueue)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Broadcast delivers data to every subscriber with room in its queue.
func (b *Broker) Broadcast(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- data:
		default:
		}
	}
}

// PublishEvents broadcasts events directly, for single instance deployments
// without Redis.
func (b *Broker) PublishEvents(_ context.Context, evs []domain.Event) error {
	for i := range evs {
		data, err := sonic.Marshal(evs[i])
		if err != nil {
			return err
		}
		b.Broadcast(data)
	}
	return nil
}

// SubscribeUpdates relays task events published on channel to the broker until
// ctx is done, resubscribing whenever the subscription drops.
func SubscribeUpdates(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, b *Broker) {
	for {
		sub := rc.Subscribe(ctx, channel)
		relay(ctx, logger, sub.Channel(), b)
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func relay(ctx context.Context, logger *log.Logger, ch <-chan *redis.Message, b *Broker) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev domain.Event
			if err := sonic.UnmarshalString(msg.Payload, &ev); err != nil || ev.Type == "" {
				logger.WithField("channel", msg.Channel).Warn("dropping malformed task event")
				continue
			}
			b.Broadcast([]byte(msg.Payload))
		}
	}
}

func streamEvents(auth Authenticator, broker *Broker, heartbeat time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if token := c.QueryParam("token"); authHeader == "" && token != "" {
			authHeader = bearerScheme + " " + token
		}
		if _, err := auth.UserIDFromAuthHeader(authHeader); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		h := c.Response().Header()
		h.Set(echo.HeaderContentType, "text/event-stream")
		h.Set(echo.HeaderCacheControl, "no-cache")
		h.Set(echo.HeaderConnection, "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		c.Response().WriteHeader(http.StatusOK)
		flusher.Flush()

		ch := broker.subscribe()
		defer broker.unsubscribe(ch)

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		ctx := c.Request().Context()
		w := c.Response()
		for {
			var chunk string
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				chunk = sseKeepAlive
			case data := <-ch:
				chunk = sseEventTask + sseDataPrefix + string(data) + "\n\n"
			}
			if _, err := w.Write([]byte(chunk)); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
