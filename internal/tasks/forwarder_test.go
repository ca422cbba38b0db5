package tasks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestForwarder_SuccessMarksDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			t.Errorf("expected forwarded Authorization header, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reply":"hi"}`))
	}))
	defer srv.Close()

	registry := NewRegistry(time.Hour)
	id := registry.Create()
	f := NewForwarder(registry, 5*time.Second)

	f.Forward(context.Background(), id, srv.URL, map[string]string{"prompt": "hi"}, map[string]string{"Authorization": "Bearer abc"})

	task, ok := registry.Get(id)
	if !ok || task.State != StateDone {
		t.Fatalf("expected done, got %+v ok=%v", task, ok)
	}
	result, ok := task.Result.(map[string]any)
	if !ok || result["reply"] != "hi" {
		t.Fatalf("unexpected result: %v", task.Result)
	}
}

func TestForwarder_UpstreamUnreachableMarksError(t *testing.T) {
	registry := NewRegistry(time.Hour)
	id := registry.Create()
	f := NewForwarder(registry, time.Second)

	f.Forward(context.Background(), id, "http://127.0.0.1:1", map[string]string{}, nil)

	task, ok := registry.Get(id)
	if !ok || task.State != StateError {
		t.Fatalf("expected error state, got %+v ok=%v", task, ok)
	}
}

func TestForwarder_DefaultTargetUsedWhenEmpty(t *testing.T) {
	registry := NewRegistry(time.Hour)
	id := registry.Create()
	f := NewForwarder(registry, time.Millisecond)

	f.Forward(context.Background(), id, "", map[string]string{}, nil)

	task, _ := registry.Get(id)
	if task.State != StateError {
		t.Fatalf("expected default target (unreachable in test) to fail fast, got %s", task.State)
	}
	result, _ := task.Result.(map[string]string)
	if !strings.Contains(result["detail"], DefaultTarget) {
		t.Fatalf("expected the call to go to %s, got detail %q", DefaultTarget, result["detail"])
	}
}
