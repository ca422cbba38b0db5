package usage

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/erauner12/attach-gateway/internal/config"
)

// New builds the configured Sink, falling back to NullSink if the
// requested backend can't be constructed (mirrors get_usage_backend's
// defensive fallback).
func New(backend config.UsageBackend, externalURL string, reg prometheus.Registerer) Sink {
	switch backend {
	case config.UsageBackendMetric:
		sink, err := NewMetricSink(reg)
		if err != nil {
			return NullSink{}
		}
		return sink
	case config.UsageBackendExternal:
		if externalURL == "" {
			return NullSink{}
		}
		return NewExternalSink(externalURL)
	default:
		return NullSink{}
	}
}
