package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueue_FIFOOrder(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	jobs := []Job{NewJob(map[string]any{"n": 1}, nil), NewJob(map[string]any{"n": 2}, nil)}
	for _, j := range jobs {
		if err := q.Put(ctx, j); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	for _, want := range jobs {
		got, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ID != want.ID {
			t.Fatalf("expected FIFO order, got %s want %s", got.ID, want.ID)
		}
	}
}

func TestMemoryQueue_GetBlocksUntilCancelled(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)
	if err == nil {
		t.Fatal("expected Get to block and then return ctx error on empty queue")
	}
}
