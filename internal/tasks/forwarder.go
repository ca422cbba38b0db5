package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultTarget is used when a submitted task doesn't name a target_url,
// mirroring the original gateway's fallback to its own /api/chat route.
const DefaultTarget = "http://127.0.0.1:8080/api/chat"

// Forwarder posts a task's wrapped input to its target URL and records
// the outcome in a Registry. One Forwarder serves the whole process;
// each call runs asynchronously via go f.Forward(...).
type Forwarder struct {
	registry *Registry
	client   *http.Client
}

// NewForwarder builds a Forwarder with the given per-call timeout.
func NewForwarder(registry *Registry, timeout time.Duration) *Forwarder {
	return &Forwarder{registry: registry, client: &http.Client{Timeout: timeout}}
}

// Forward POSTs input to targetURL with the given headers and records
// the task as done on a 2xx JSON response, or error otherwise. It never
// panics or returns to the caller: it is meant to run in its own
// goroutine, with the caller polling the registry for the outcome.
func (f *Forwarder) Forward(ctx context.Context, taskID, targetURL string, input any, headers map[string]string) {
	f.registry.MarkInProgress(taskID)

	if targetURL == "" {
		targetURL = DefaultTarget
	}

	body, err := json.Marshal(input)
	if err != nil {
		f.registry.Complete(taskID, StateError, map[string]string{"detail": err.Error()})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		f.registry.Complete(taskID, StateError, map[string]string{"detail": err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.registry.Complete(taskID, StateError, map[string]string{"detail": err.Error()})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		f.registry.Complete(taskID, StateError, map[string]string{"detail": fmt.Sprintf("upstream returned status %d", resp.StatusCode)})
		return
	}

	var result any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		f.registry.Complete(taskID, StateError, map[string]string{"detail": fmt.Sprintf("decode upstream response: %v", err)})
		return
	}

	f.registry.Complete(taskID, StateDone, result)
}
