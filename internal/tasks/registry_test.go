package tasks

import (
	"testing"
	"time"
)

func TestRegistry_LifecycleTransitions(t *testing.T) {
	r := NewRegistry(time.Hour)
	id := r.Create()

	task, ok := r.Get(id)
	if !ok || task.State != StateQueued {
		t.Fatalf("expected queued state, got %+v ok=%v", task, ok)
	}

	r.MarkInProgress(id)
	task, _ = r.Get(id)
	if task.State != StateInProgress {
		t.Fatalf("expected in_progress, got %s", task.State)
	}

	r.Complete(id, StateDone, map[string]string{"ok": "true"})
	task, _ = r.Get(id)
	if task.State != StateDone {
		t.Fatalf("expected done, got %s", task.State)
	}
	if task.Result.(map[string]string)["ok"] != "true" {
		t.Fatalf("unexpected result: %v", task.Result)
	}
}

func TestRegistry_GetUnknownTaskFails(t *testing.T) {
	r := NewRegistry(time.Hour)
	if _, ok := r.Get("does-not-exist"); ok {
		t.Fatal("expected unknown task id to miss")
	}
}

func TestRegistry_SweepEvictsExpiredTasks(t *testing.T) {
	r := NewRegistry(time.Minute)
	clock := time.Now()
	r.now = func() time.Time { return clock }

	id := r.Create()

	clock = clock.Add(2 * time.Minute)
	r.Sweep()

	if _, ok := r.Get(id); ok {
		t.Fatal("expected task older than TTL to be evicted")
	}
}

func TestRegistry_SweepKeepsFreshTasks(t *testing.T) {
	r := NewRegistry(time.Hour)
	id := r.Create()

	r.Sweep()

	if _, ok := r.Get(id); !ok {
		t.Fatal("expected fresh task to survive sweep")
	}
}
