// Package cachemanager provides the in-memory read-through cache used by the
// derived-state readers.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager stores values of one type under string-like keys.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Flush(ctx context.Context)
}
