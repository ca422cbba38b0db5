package usage

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricSink_RecordsInAndOutLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewMetricSink(reg)
	if err != nil {
		t.Fatalf("new metric sink: %v", err)
	}

	if err := sink.Record(context.Background(), Event{User: "alice", Model: "gpt-4", TokensIn: 10, TokensOut: 5}); err != nil {
		t.Fatalf("record: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found int
	for _, fam := range families {
		if fam.GetName() != "attach_usage_tokens_total" {
			continue
		}
		for _, m := range fam.Metric {
			found++
			_ = m.GetCounter().GetValue()
		}
	}
	if found != 2 {
		t.Fatalf("expected 2 label combinations (in/out), got %d", found)
	}
}
