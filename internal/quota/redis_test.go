package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T, window time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, window), mr
}

func TestRedisStore_SlidingWindowEvictsOldEntries(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	clock := time.Now()
	store.now = func() time.Time { return clock }

	ctx := context.Background()
	total, _, err := store.Increment(ctx, "user-1", 100)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if total != 100 {
		t.Fatalf("expected total=100, got %d", total)
	}

	clock = clock.Add(30 * time.Second)
	mr.FastForward(30 * time.Second)
	total, _, err = store.Increment(ctx, "user-1", 50)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if total != 150 {
		t.Fatalf("expected total=150 within window, got %d", total)
	}

	clock = clock.Add(40 * time.Second)
	mr.FastForward(40 * time.Second)
	total, oldest, err := store.Increment(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if total != 60 {
		t.Fatalf("expected stale 100-token entry evicted, total=60, got %d", total)
	}
	if oldest <= 0 {
		t.Fatalf("expected non-zero oldest timestamp, got %f", oldest)
	}
}

func TestRedisStore_PerUserIsolation(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	if _, _, err := store.Increment(ctx, "alice", 1000); err != nil {
		t.Fatalf("increment: %v", err)
	}
	total, _, err := store.Increment(ctx, "bob", 5)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected bob's window isolated from alice's, got total=%d", total)
	}
}
