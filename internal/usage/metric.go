package usage

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// tokensTotal is the counter backing MetricSink, labeled the same way
// as the original gateway's PrometheusUsageBackend.
var tokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "attach_usage_tokens_total",
		Help: "Total tokens processed by the gateway",
	},
	[]string{"user", "direction", "model"},
)

// MetricSink exposes token usage as a Prometheus counter, reported in
// the JSON snapshot served at GET /v1/metrics.
type MetricSink struct {
	counter *prometheus.CounterVec
}

// NewMetricSink registers (or re-uses an already-registered) counter
// against reg and returns a Sink backed by it.
func NewMetricSink(reg prometheus.Registerer) (*MetricSink, error) {
	if err := reg.Register(tokensTotal); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return &MetricSink{counter: are.ExistingCollector.(*prometheus.CounterVec)}, nil
		}
		return nil, err
	}
	return &MetricSink{counter: tokensTotal}, nil
}

func (s *MetricSink) Record(_ context.Context, evt Event) error {
	user := evt.User
	if user == "" {
		user = "unknown"
	}
	model := evt.Model
	if model == "" {
		model = "unknown"
	}
	s.counter.WithLabelValues(user, "in", model).Add(float64(evt.TokensIn))
	s.counter.WithLabelValues(user, "out", model).Add(float64(evt.TokensOut))
	return nil
}
