package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/attach-gateway/internal/quota"
)

// quotaResponseWriter wraps the downstream ResponseWriter to enforce
// the egress half of C6 without buffering the full response.
//
// The status line is held back until the first chunk has been
// evaluated: if that chunk alone would exceed the quota, the pending
// status is discarded and a 429 is sent instead. Once any byte has
// actually reached the client, the single-writer rule (§5) applies —
// a later overflow can only truncate the stream, never replace the
// status.
type quotaResponseWriter struct {
	http.ResponseWriter
	ctx     context.Context
	store   quota.Store
	encoder quota.Encoder
	limit   int64
	window  time.Duration
	draft   *usageDraft

	status    int
	statusSet bool
	committed bool
	truncated bool
	rejected  bool
}

func (q *quotaResponseWriter) WriteHeader(code int) {
	if q.statusSet {
		return
	}
	q.status = code
	q.statusSet = true
	if model := q.ResponseWriter.Header().Get("X-LLM-Model"); model != "" {
		q.draft.model = model
	}
}

func (q *quotaResponseWriter) Write(b []byte) (int, error) {
	if q.rejected {
		return len(b), nil
	}
	if q.truncated {
		return len(b), nil
	}

	textual := isTextual(q.ResponseWriter.Header().Get("Content-Type"))
	tokens := int64(0)
	if textual && len(b) > 0 {
		tokens = int64(q.encoder.Count(string(b)))
	}

	total, oldest, err := q.store.Increment(q.ctx, q.draft.user, tokens)
	if err != nil {
		log.Warn().Err(err).Msg("quota store increment failed mid-stream")
	} else if total > q.limit {
		if !q.committed {
			// First chunk alone overflows: nothing has reached the
			// client yet, so swap the status for a 429.
			q.rejected = true
			retryAfter := retryAfterSeconds(q.window, oldest)
			writeJSON(q.ResponseWriter, http.StatusTooManyRequests, map[string]any{
				"detail":      "token quota exceeded",
				"retry_after": retryAfter,
			})
			return len(b), nil
		}
		// Status already sent: truncate cleanly rather than tear down
		// the connection mid-chunk.
		q.truncated = true
		return len(b), nil
	}

	q.draft.tokensOut += tokens
	q.commitHeader()
	n, err := q.ResponseWriter.Write(b)
	if flusher, ok := q.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
	return n, err
}

func (q *quotaResponseWriter) commitHeader() {
	if q.committed {
		return
	}
	if !q.statusSet {
		q.status = http.StatusOK
	}
	q.ResponseWriter.WriteHeader(q.status)
	q.committed = true
}

// finish flushes a pending header for handlers that wrote no body
// (e.g. an empty 204-style response).
func (q *quotaResponseWriter) finish() {
	if !q.rejected {
		q.commitHeader()
	}
}

// Flush forwards to the underlying ResponseWriter when it supports
// http.Flusher, so the streaming dispatcher downstream still sees
// real backpressure instead of silently no-op flushing.
func (q *quotaResponseWriter) Flush() {
	if flusher, ok := q.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
