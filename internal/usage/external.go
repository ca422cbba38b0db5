package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ExternalSink posts a token usage event to an external metering
// collector (an OpenMeter-shaped ingestion endpoint), grounded on the
// original gateway's OpenMeterBackend. Failures are logged and
// swallowed so a metering outage never fails the request.
type ExternalSink struct {
	endpoint string
	client   *http.Client
}

// NewExternalSink builds an ExternalSink posting to endpoint.
func NewExternalSink(endpoint string) *ExternalSink {
	return &ExternalSink{endpoint: endpoint, client: &http.Client{Timeout: 5 * time.Second}}
}

type externalEvent struct {
	Type    string         `json:"type"`
	Subject string         `json:"subject"`
	Project string         `json:"project"`
	Time    string         `json:"time"`
	Data    map[string]any `json:"data"`
}

// Record dispatches the POST on its own goroutine and returns
// immediately: spec §4.7 requires the external variant to be
// non-blocking from the request's point of view. The goroutine outlives
// the request, so it runs detached from the request's cancel scope.
func (s *ExternalSink) Record(ctx context.Context, evt Event) error {
	go s.send(context.WithoutCancel(ctx), evt)
	return nil
}

func (s *ExternalSink) send(ctx context.Context, evt Event) {
	payload := externalEvent{
		Type:    "tokens",
		Subject: evt.User,
		Project: evt.Project,
		Time:    time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Data: map[string]any{
			"tokens_in":  evt.TokensIn,
			"tokens_out": evt.TokensOut,
			"model":      evt.Model,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal external usage event")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Msg("failed to build external usage request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("external usage sink request failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		log.Warn().Int("status", resp.StatusCode).Msg("external usage sink rejected event")
	}
}
