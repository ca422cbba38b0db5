// Package quota implements the sliding-window token meter (C5) and the
// token encoder; the middleware that enforces it (C6) lives in
// internal/httpapi.
package quota

import "context"

// Store tracks a per-user sliding window of token counts. Increment
// records tokens spent "now" and returns the window's running total
// along with the timestamp (unix seconds) of its oldest surviving
// entry, used to compute Retry-After on rejection.
type Store interface {
	Increment(ctx context.Context, user string, tokens int64) (total int64, oldest float64, err error)
}
