package api

import (
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Warnf("ignoring invalid %s=%q, using %d", name, raw, def)
		return def
	}
	return n
}

func envDur(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		log.Warnf("ignoring invalid %s=%q, using %v", name, raw, def)
		return def
	}
	return d
}
