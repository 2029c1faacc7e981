package main

import (
	"context"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/jay8860/DD-TaskDashboardClone/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}

	ctx := context.Background()

	if err := storage.CreateTables(ctx, connStr, []string{
		os.Getenv("TASKS_TABLE"),
	}); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	if err := storage.CreateQueues(ctx, connStr, []string{
		os.Getenv("TASK_EVENTS_QUEUE"),
	}); err != nil {
		log.Fatalf("create queues: %v", err)
	}

	log.Info("storage init complete")
}
