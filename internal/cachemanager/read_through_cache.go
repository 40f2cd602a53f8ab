package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache loads values through fn on a miss. Errors are returned
// and never cached.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache           CacheManager[K, V]
	fn              func(ctx context.Context, input I) (V, error)
	shouldSkipCache bool
}

func NewReadThroughCache[K ~string, V any, I any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	shouldSkipCache bool,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		cache:           cache,
		fn:              fn,
		shouldSkipCache: shouldSkipCache,
	}
}

// Get returns the cached value for key, loading it with input on a miss.
// hit reports whether the value came from the cache.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (value V, hit bool, err error) {
	if r.shouldSkipCache {
		value, err = r.fn(ctx, input)
		return value, false, err
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, true, nil
	}

	value, err = r.fn(ctx, input)
	if err != nil {
		return value, false, err
	}

	r.cache.Set(ctx, key, value, ttl)
	return value, false, nil
}

// Flush drops every cached value.
func (r *ReadThroughCache[K, V, I]) Flush(ctx context.Context) {
	r.cache.Flush(ctx)
}
