// Package usage implements the usage sink (C7): a pluggable recorder of
// per-request token accounting events, grounded on the original
// gateway's usage/backends.py and usage/factory.py.
package usage

import "context"

// Event is a single metered completion, recorded once per request by
// the quota middleware after the response has finished streaming.
type Event struct {
	User       string
	Project    string
	Model      string
	TokensIn   int64
	TokensOut  int64
	RequestID  string
	RecordedAt float64
}

// Sink persists a usage Event. Implementations must not block the
// request path for long; the quota middleware calls Record on the
// request goroutine, once per request, after the downstream handler has
// returned or the request has been rejected.
type Sink interface {
	Record(ctx context.Context, evt Event) error
}
