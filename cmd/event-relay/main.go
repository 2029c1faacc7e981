package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/jay8860/DD-TaskDashboardClone/relay"
	"github.com/jay8860/DD-TaskDashboardClone/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("event relay starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	eventsQueue := os.Getenv("TASK_EVENTS_QUEUE")
	if connStr == "" || eventsQueue == "" {
		log.Fatal("missing storage config")
	}
	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}

	batch := 16
	if v := os.Getenv("RELAY_BATCH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Fatalf("invalid RELAY_BATCH: %q", v)
		}
		batch = n
	}
	visibility := 30 * time.Second
	if v := os.Getenv("RELAY_VISIBILITY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < time.Second {
			log.Fatalf("invalid RELAY_VISIBILITY_TIMEOUT: %q", v)
		}
		visibility = d
	}

	queue, err := storage.NewEventQueue(connStr, eventsQueue, int32(batch), visibility)
	if err != nil {
		log.Fatalf("queue client: %v", err)
	}

	opts, err := storage.ParseRedisOptions(redisConn)
	if err != nil {
		log.Fatalf("invalid REDIS_CONNECTION_STRING: %v", err)
	}
	rc := redis.NewClient(opts)
	defer rc.Close()

	partition := os.Getenv("TASKS_PARTITION")
	if partition == "" {
		partition = "tasks"
	}
	channel := os.Getenv("TASK_UPDATES_CHANNEL")
	if channel == "" {
		channel = "task-updates"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := relay.New(queue, storage.NewNotifier(rc, channel), func(ctx context.Context) error {
		return storage.EvictTasks(ctx, rc, partition)
	}, log.StandardLogger())
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("relay: %v", err)
	}
	log.Info("event relay stopped")
}
