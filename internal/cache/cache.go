// Package cache implements the content-addressed response cache (C8)
// that lets the proxy dispatcher skip re-running an identical chat
// completion request.
package cache

import "context"

// Cache stores a fully-buffered JSON response keyed by a fingerprint of
// the request that produced it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}
