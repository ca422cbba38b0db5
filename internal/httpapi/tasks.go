package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erauner12/attach-gateway/internal/tasks"
)

// TaskHandlers mounts the C12 async task endpoints: register a
// forwarded task and poll its state.
type TaskHandlers struct {
	Registry  *tasks.Registry
	Forwarder *tasks.Forwarder
}

type sendTaskRequest struct {
	Input     map[string]any `json:"input"`
	TargetURL string         `json:"target_url"`
}

// Send implements POST /a2a/tasks/send.
func (h *TaskHandlers) Send(w http.ResponseWriter, r *http.Request) {
	var req sendTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Input == nil {
		writeError(w, r, http.StatusBadRequest, "request body must contain an \"input\" object")
		return
	}

	id := h.Registry.Create()

	headers := map[string]string{}
	if authz := r.Header.Get("Authorization"); authz != "" {
		headers["Authorization"] = authz
	}
	if sid := SessionID(r.Context()); sid != "" {
		headers["X-Attach-Session"] = sid[:16]
	}

	// Detach from the inbound request's cancel scope: ServeHTTP returns
	// as soon as this goroutine is spawned, and a live http.Server
	// cancels the request context the instant the handler returns,
	// which would otherwise race the forwarded call every time. Mirrors
	// FastAPI's BackgroundTasks, which aren't tied to the request scope.
	go h.Forwarder.Forward(context.WithoutCancel(r.Context()), id, req.TargetURL, req.Input, headers)

	writeJSON(w, http.StatusOK, map[string]string{"task_id": id, "state": string(tasks.StateQueued)})
}

// Status implements GET /a2a/tasks/status/{id}.
func (h *TaskHandlers) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, ok := h.Registry.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "unknown task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}
