package api

import (
	"context"
	"testing"
	"time"
)

func TestRedisDeduperAddRemove(t *testing.T) {
	client := newRedis(t)
	deduper := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	added, err := deduper.Add(ctx, "user", "k1")
	if err != nil || !added {
		t.Fatalf("first add: %v %v", added, err)
	}
	added, err = deduper.Add(ctx, "user", "k1")
	if err != nil || added {
		t.Fatalf("expected duplicate: %v %v", added, err)
	}
	added, err = deduper.Add(ctx, "other", "k1")
	if err != nil || !added {
		t.Fatalf("keys should be scoped per user: %v %v", added, err)
	}

	if err := deduper.Remove(ctx, "user", "k1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	added, err = deduper.Add(ctx, "user", "k1")
	if err != nil || !added {
		t.Fatalf("expected re-add after remove: %v %v", added, err)
	}
}

func TestRedisDeduperKeyNamespacing(t *testing.T) {
	client := newRedis(t)
	deduper := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	if _, err := deduper.Add(ctx, "user", "k1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	expectedKey := "user:" + dedupeKeyPrefix + ":k1"
	ttl, err := client.TTL(ctx, expectedKey).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v for %q", ttl, expectedKey)
	}
}
