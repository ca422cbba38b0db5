// Package proxy implements the cache-and-queue-aware dispatcher (C10)
// that sits in front of the chat engine, grounded on the original
// gateway's proxy/engine.py.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/attach-gateway/internal/cache"
	"github.com/erauner12/attach-gateway/internal/config"
	"github.com/erauner12/attach-gateway/internal/queue"
)

// hopByHopHeaders must never be relayed between the gateway and the
// engine in either direction (RFC 7230 §6.1).
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Dispatcher fronts the chat engine: a cache hit short-circuits the
// call entirely, a non-memory queue backend defers it to the
// background worker, and otherwise the request is relayed to the
// engine directly (buffered or streamed, per the request body).
type Dispatcher struct {
	EngineURL    string
	Client       *http.Client
	Cache        cache.Cache
	Queue        queue.Queue
	QueueBackend config.Backend
}

// NewDispatcher builds a Dispatcher. A nil Client falls back to one
// with no timeout, matching the original gateway's streaming behavior.
func NewDispatcher(engineURL string, client *http.Client, c cache.Cache, q queue.Queue, queueBackend config.Backend) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{
		EngineURL:    strings.TrimRight(engineURL, "/"),
		Client:       client,
		Cache:        c,
		Queue:        q,
		QueueBackend: queueBackend,
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidJSON.Error())
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidJSON.Error())
		return
	}

	model, _ := payload["model"].(string)
	messages := payload["messages"]
	params, _ := payload["params"].(map[string]any)
	key := cache.Key(model, messages, params)

	if hit, ok, err := d.Cache.Get(r.Context(), key); err == nil && ok {
		w.Header().Set("Content-Type", "application/json")
		w.Write(hit)
		return
	}

	if d.QueueBackend != "" && d.QueueBackend != config.BackendMemory {
		job := queue.NewJob(payload, forwardableHeaders(r))
		if err := d.Queue.Put(r.Context(), job); err != nil {
			log.Error().Err(err).Msg("failed to enqueue chat job")
			writeError(w, http.StatusBadGateway, "failed to enqueue request")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": "queued"})
		return
	}

	upstreamURL := d.EngineURL + "/v1/chat/completions"
	headers := http.Header{}
	if auth := r.Header.Get("Authorization"); auth != "" {
		headers.Set("Authorization", auth)
	}

	stream := true
	if v, ok := payload["stream"].(bool); ok {
		stream = v
	}

	if !stream {
		d.relayBuffered(w, r.Context(), upstreamURL, raw, headers, key)
		return
	}
	d.relayStreaming(w, r.Context(), upstreamURL, raw, headers)
}

func (d *Dispatcher) relayBuffered(w http.ResponseWriter, ctx context.Context, url string, body []byte, headers http.Header, cacheKey string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to build upstream request")
		return
	}
	applyHeaders(req, headers)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("upstream chat engine error")
		writeError(w, http.StatusBadGateway, "upstream chat engine error")
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to read upstream response")
		return
	}

	if resp.StatusCode/100 == 2 {
		if err := d.Cache.Set(ctx, cacheKey, respBody); err != nil {
			log.Warn().Err(err).Msg("failed to populate cache")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(respBody)
}

func (d *Dispatcher) relayStreaming(w http.ResponseWriter, ctx context.Context, url string, body []byte, headers http.Header) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to build upstream request")
		return
	}
	applyHeaders(req, headers)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("upstream chat engine error")
		writeError(w, http.StatusBadGateway, "upstream chat engine error")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return
		}
		if readErr != nil {
			log.Warn().Err(readErr).Msg("upstream stream ended early")
			return
		}
	}
}

func forwardableHeaders(r *http.Request) map[string]string {
	out := make(map[string]string)
	for k := range r.Header {
		if hopByHopHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		out[k] = r.Header.Get(k)
	}
	return out
}

func applyHeaders(req *http.Request, h http.Header) {
	for k, vs := range h {
		if hopByHopHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
