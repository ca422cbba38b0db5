// Package tasks implements the async task registry (C12): a fire-and-
// forget state machine that lets a caller submit work, poll its status,
// and have it swept from memory once it goes stale. Grounded on the
// original gateway's a2a/routes.py in-memory task table.
package tasks

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the task lifecycle: queued -> in_progress -> {done, error}.
type State string

const (
	StateQueued     State = "queued"
	StateInProgress State = "in_progress"
	StateDone       State = "done"
	StateError      State = "error"
)

// Task is the registry's record of a single forwarded call.
type Task struct {
	ID      string
	State   State
	Result  any
	Created time.Time
}

// Registry holds tasks in memory, TTL-evicting anything older than its
// configured lifetime.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*Task
	ttl   time.Duration
	now   func() time.Time
}

// NewRegistry builds an empty Registry with the given eviction TTL.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{tasks: make(map[string]*Task), ttl: ttl, now: time.Now}
}

// Create registers a new task in the queued state and returns its ID.
func (r *Registry) Create() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New().String()
	r.tasks[id] = &Task{ID: id, State: StateQueued, Created: r.now()}
	return id
}

// MarkInProgress transitions a task from queued to in_progress.
func (r *Registry) MarkInProgress(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok && t.State == StateQueued {
		t.State = StateInProgress
	}
}

// Complete records the final state and result of a task. A task that is
// already done or error is left unchanged.
func (r *Registry) Complete(id string, state State, result any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok && t.State != StateDone && t.State != StateError {
		t.State = state
		t.Result = result
	}
}

// Get returns a snapshot of the task, and whether it exists.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Sweep removes every task older than the registry's TTL, bounding
// memory growth from tasks nobody ever polled for.
func (r *Registry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.ttl)
	for id, t := range r.tasks {
		if t.Created.Before(cutoff) {
			delete(r.tasks, id)
		}
	}
}

// RunSweeper blocks, sweeping every period until stop is closed.
func (r *Registry) RunSweeper(period time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-stop:
			return
		}
	}
}
