package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/attach-gateway/internal/quota"
	"github.com/erauner12/attach-gateway/internal/usage"
)

// monitoringPaths are exempt from metering entirely (§4.6): the
// metrics scrape endpoint and the unauthenticated auth bootstrap.
var monitoringPaths = map[string]bool{
	"/v1/metrics":  true,
	"/auth/config": true,
}

// taskStatusPrefix is the original's memory-query endpoint, reused here
// with that path renamed to this gateway's equivalent async-task status
// polling path, so it isn't double-metered on every poll. A prefix
// check is required rather than an exact match since the path carries
// the task id.
const taskStatusPrefix = "/a2a/tasks/status/"

func isMonitoringPath(path string) bool {
	return monitoringPaths[path] || strings.HasPrefix(path, taskStatusPrefix)
}

// QuotaConfig parameterises QuotaMiddleware.
type QuotaConfig struct {
	Store       quota.Store
	Encoder     quota.Encoder
	LimitTokens int64
	Window      time.Duration
	Sink        usage.Sink
}

// QuotaMiddleware implements C6: it meters request tokens on ingress
// and streamed response tokens on egress against a shared sliding
// window, rejecting with 429 on overflow, and emits exactly one usage
// event per request regardless of outcome.
func QuotaMiddleware(cfg QuotaConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isMonitoringPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			draft := &usageDraft{
				user:      userFromRequest(r),
				project:   projectFromRequest(r),
				requestID: requestID(r),
			}

			raw, err := io.ReadAll(r.Body)
			if err != nil {
				finalizeAndEmit(r.Context(), cfg.Sink, draft)
				writeError(w, r, http.StatusBadRequest, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))

			if model := modelFromJSON(raw); model != "" {
				draft.model = model
			}

			tIn := int64(0)
			if isTextual(r.Header.Get("Content-Type")) {
				tIn = int64(cfg.Encoder.Count(string(raw)))
			}
			draft.tokensIn = tIn

			total, oldest, err := cfg.Store.Increment(r.Context(), draft.user, tIn)
			if err != nil {
				log.Error().Err(err).Msg("quota store increment failed")
				finalizeAndEmit(r.Context(), cfg.Sink, draft)
				writeError(w, r, http.StatusBadGateway, "quota store unavailable")
				return
			}
			if total > cfg.LimitTokens {
				retryAfter := retryAfterSeconds(cfg.Window, oldest)
				finalizeAndEmit(r.Context(), cfg.Sink, draft)
				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"detail":      "token quota exceeded",
					"retry_after": retryAfter,
				})
				return
			}

			qw := &quotaResponseWriter{
				ResponseWriter: w,
				ctx:            r.Context(),
				store:          cfg.Store,
				encoder:        cfg.Encoder,
				limit:          cfg.LimitTokens,
				window:         cfg.Window,
				draft:          draft,
			}
			next.ServeHTTP(qw, r)
			qw.finish()

			finalizeAndEmit(r.Context(), cfg.Sink, draft)
		})
	}
}

// usageDraft accumulates a usage event across the ingress and egress
// phases of a single request.
type usageDraft struct {
	user      string
	project   string
	model     string
	tokensIn  int64
	tokensOut int64
	requestID string
}

func finalizeAndEmit(ctx context.Context, sink usage.Sink, d *usageDraft) {
	if sink == nil {
		return
	}
	evt := usage.Event{
		User:      d.user,
		Project:   d.project,
		Model:     d.model,
		TokensIn:  d.tokensIn,
		TokensOut: d.tokensOut,
		RequestID: d.requestID,
	}
	if err := sink.Record(ctx, evt); err != nil {
		log.Warn().Err(err).Msg("usage sink record failed")
	}
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return uuid.New().String()
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/") || strings.Contains(ct, "json")
}

func modelFromJSON(raw []byte) string {
	var payload struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return payload.Model
}

func retryAfterSeconds(window time.Duration, oldest float64) int64 {
	now := float64(time.Now().Unix())
	r := int64(window.Seconds() - (now - oldest))
	if r < 0 {
		return 0
	}
	return r
}
