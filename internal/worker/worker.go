// Package worker implements the background queue-drain loop (C11) that
// services jobs the dispatcher deferred to a non-memory queue backend,
// grounded on the original gateway's scripts/worker.py.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/attach-gateway/internal/cache"
	"github.com/erauner12/attach-gateway/internal/queue"
)

// Worker pulls jobs off a Queue, calls the chat engine, and populates
// the shared cache with the result so a subsequent identical request
// served by the dispatcher is a cache hit.
type Worker struct {
	EngineURL string
	Client    *http.Client
	Cache     cache.Cache
	Queue     queue.Queue
}

// New builds a Worker. A nil client falls back to one with no timeout.
func New(engineURL string, client *http.Client, c cache.Cache, q queue.Queue) *Worker {
	if client == nil {
		client = &http.Client{}
	}
	return &Worker{EngineURL: strings.TrimRight(engineURL, "/"), Client: client, Cache: c, Queue: q}
}

// Run drains the queue until ctx is cancelled. Each job failure is
// logged and dropped; a bad job must never wedge the loop.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.Queue.Get(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("failed to pull job from queue")
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job queue.Job) {
	model, _ := job.Request["model"].(string)
	messages := job.Request["messages"]
	params, _ := job.Request["params"].(map[string]any)
	key := cache.Key(model, messages, params)

	body, err := json.Marshal(job.Request)
	if err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("failed to marshal queued job")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.EngineURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("failed to build upstream request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range job.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.Client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("upstream call failed for queued job")
		return
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to decode upstream response")
		return
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("failed to re-marshal upstream result")
		return
	}
	if err := w.Cache.Set(ctx, key, resultBytes); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to cache queued job result")
	}
}
