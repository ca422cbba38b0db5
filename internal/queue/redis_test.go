package queue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisQueue_PutGetRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q := NewRedisQueue(client, "")
	ctx := context.Background()

	job := NewJob(map[string]any{"model": "gpt-4"}, map[string]string{"Authorization": "Bearer x"})
	if err := q.Put(ctx, job); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := q.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != job.ID {
		t.Fatalf("expected id %s, got %s", job.ID, got.ID)
	}
	if got.Request["model"] != "gpt-4" {
		t.Fatalf("unexpected request payload: %v", got.Request)
	}
}
