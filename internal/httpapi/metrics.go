package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

type metricSample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// Metrics implements GET /v1/metrics: a JSON snapshot of every counter
// gathered from reg, rather than the raw Prometheus exposition format,
// since the spec's external surface promises JSON everywhere.
func Metrics(reg *prometheus.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		families, err := reg.Gather()
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "failed to gather metrics")
			return
		}

		samples := make([]metricSample, 0, len(families))
		for _, fam := range families {
			for _, m := range fam.GetMetric() {
				labels := make(map[string]string, len(m.GetLabel()))
				for _, lp := range m.GetLabel() {
					labels[lp.GetName()] = lp.GetValue()
				}
				var value float64
				switch {
				case m.Counter != nil:
					value = m.GetCounter().GetValue()
				case m.Gauge != nil:
					value = m.GetGauge().GetValue()
				default:
					continue
				}
				samples = append(samples, metricSample{Name: fam.GetName(), Labels: labels, Value: value})
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{"metrics": samples})
	}
}
