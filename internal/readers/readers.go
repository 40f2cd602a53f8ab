// Package readers fetches derived state (palette, grid image, params, pixel
// lookups, cluster suggestions) for the current session.
//
// Every getter returns its empty value together with session.ErrNoSession,
// without any network call, when no session exists. Palette indices returned
// here are only valid until the next mutation, so callers addressing colors
// by index must have re-read the palette after the last refresh event.
package readers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Laloops/tramagrid/internal/api"
	"github.com/Laloops/tramagrid/internal/cachemanager"
	"github.com/Laloops/tramagrid/internal/log"
	"github.com/Laloops/tramagrid/internal/refresh"
	"github.com/Laloops/tramagrid/internal/session"
	"github.com/Laloops/tramagrid/internal/tracing"
)

// NoPixel is returned by GetPixelIndex when no index is available.
const NoPixel = -1

// Querier performs one backend round trip.
type Querier interface {
	Do(ctx context.Context, route api.Route, sessionID string, payload, out any) error
}

// Key addresses a cached query result.
type Key string

// cacheKey scopes a query to a session and an invalidation generation. A
// fetch that started before an invalidation stores its result under the old
// generation, where later reads never look.
func cacheKey(gen uint64, sid, query string) Key {
	return Key(fmt.Sprintf("%d/%s/%s", gen, sid, query))
}

type pixelQuery struct {
	SessionID string
	X, Y      int
}

// Readers is the set of derived-state queries.
type Readers struct {
	handle *session.Handle
	q      Querier
	tracer trace.Tracer

	cacheEnabled bool
	ttl          time.Duration
	generation   atomic.Uint64

	palette  *cachemanager.ReadThroughCache[Key, []PaletteEntry, string]
	grid     *cachemanager.ReadThroughCache[Key, string, string]
	params   *cachemanager.ReadThroughCache[Key, Params, string]
	clusters *cachemanager.ReadThroughCache[Key, []Cluster, string]
	pixel    *cachemanager.ReadThroughCache[Key, int, pixelQuery]
	flushers []func(context.Context)
}

// Option configures Readers.
type Option func(*Readers)

// WithCache caches results per session and query for ttl. The cache is
// flushed whenever a bus passed to InvalidateOn publishes.
func WithCache(ttl time.Duration) Option {
	return func(r *Readers) {
		r.cacheEnabled = true
		r.ttl = ttl
	}
}

// WithTracer sets the tracer for reader spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Readers) { r.tracer = t }
}

// New creates Readers bound to h.
func New(h *session.Handle, q Querier, opts ...Option) *Readers {
	r := &Readers{
		handle: h,
		q:      q,
		tracer: otel.Tracer("github.com/Laloops/tramagrid/internal/readers"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.ttl <= 0 {
		r.ttl = cachemanager.DefaultExpiration
	}
	skip := !r.cacheEnabled

	paletteCache := cachemanager.NewInMemoryCacheManager[Key, []PaletteEntry]("palette", r.ttl, cachemanager.DefaultCleanupInterval)
	gridCache := cachemanager.NewInMemoryCacheManager[Key, string]("grid", r.ttl, cachemanager.DefaultCleanupInterval)
	paramsCache := cachemanager.NewInMemoryCacheManager[Key, Params]("params", r.ttl, cachemanager.DefaultCleanupInterval)
	clusterCache := cachemanager.NewInMemoryCacheManager[Key, []Cluster]("clusters", r.ttl, cachemanager.DefaultCleanupInterval)
	pixelCache := cachemanager.NewInMemoryCacheManager[Key, int]("pixel", r.ttl, cachemanager.DefaultCleanupInterval)

	r.palette = cachemanager.NewReadThroughCache[Key, []PaletteEntry, string](paletteCache, r.fetchPalette, skip)
	r.grid = cachemanager.NewReadThroughCache[Key, string, string](gridCache, r.fetchGrid, skip)
	r.params = cachemanager.NewReadThroughCache[Key, Params, string](paramsCache, r.fetchParams, skip)
	r.clusters = cachemanager.NewReadThroughCache[Key, []Cluster, string](clusterCache, r.fetchClusters, skip)
	r.pixel = cachemanager.NewReadThroughCache[Key, int, pixelQuery](pixelCache, r.fetchPixel, skip)
	r.flushers = []func(context.Context){
		r.palette.Flush, r.grid.Flush, r.params.Flush, r.clusters.Flush, r.pixel.Flush,
	}
	return r
}

// InvalidateOn flushes the cache synchronously on every event of bus, before
// subscribers are notified.
func (r *Readers) InvalidateOn(bus *refresh.Bus) {
	bus.OnInvalidate(func(refresh.StateInvalidated) {
		r.Invalidate(context.Background())
	})
}

// Invalidate drops every cached result and starts a new generation.
func (r *Readers) Invalidate(ctx context.Context) {
	if !r.cacheEnabled {
		return
	}
	r.generation.Add(1)
	for _, flush := range r.flushers {
		flush(ctx)
	}
}

// GetPalette returns the palette ordered as the backend sends it.
func (r *Readers) GetPalette(ctx context.Context) ([]PaletteEntry, error) {
	sid, ok := r.handle.Current()
	if !ok {
		return []PaletteEntry{}, session.ErrNoSession
	}
	v, err := read(ctx, r, "palette", r.palette, r.key(sid, "palette"), sid)
	if err != nil {
		return []PaletteEntry{}, err
	}
	return v, nil
}

// GetGridImage returns the rendered grid as a data URL, or "" when the
// backend has none.
func (r *Readers) GetGridImage(ctx context.Context) (string, error) {
	sid, ok := r.handle.Current()
	if !ok {
		return "", session.ErrNoSession
	}
	return read(ctx, r, "grid", r.grid, r.key(sid, "grid"), sid)
}

// GetParams returns the generation parameter record.
func (r *Readers) GetParams(ctx context.Context) (Params, error) {
	sid, ok := r.handle.Current()
	if !ok {
		return Params{}, session.ErrNoSession
	}
	v, err := read(ctx, r, "params", r.params, r.key(sid, "params"), sid)
	if err != nil {
		return Params{}, err
	}
	return v, nil
}

// GetPixelIndex returns the palette index painted at cell (x, y), or NoPixel.
func (r *Readers) GetPixelIndex(ctx context.Context, x, y int) (int, error) {
	sid, ok := r.handle.Current()
	if !ok {
		return NoPixel, session.ErrNoSession
	}
	key := r.key(sid, fmt.Sprintf("pixel/%d,%d", x, y))
	v, err := read(ctx, r, "pixel", r.pixel, key, pixelQuery{SessionID: sid, X: x, Y: y})
	if err != nil {
		return NoPixel, err
	}
	return v, nil
}

// GetColorClusters returns merge suggestions.
func (r *Readers) GetColorClusters(ctx context.Context) ([]Cluster, error) {
	sid, ok := r.handle.Current()
	if !ok {
		return []Cluster{}, session.ErrNoSession
	}
	v, err := read(ctx, r, "clusters", r.clusters, r.key(sid, "clusters"), sid)
	if err != nil {
		return []Cluster{}, err
	}
	return v, nil
}

func (r *Readers) key(sid, query string) Key {
	return cacheKey(r.generation.Load(), sid, query)
}

func read[V, I any](ctx context.Context, r *Readers, name string, rt *cachemanager.ReadThroughCache[Key, V, I], key Key, in I) (V, error) {
	ctx, span := r.tracer.Start(ctx, tracing.SpanPrefixReader+name,
		trace.WithAttributes(attribute.String(tracing.AttrQuery, name)),
	)
	defer span.End()

	v, hit, err := rt.Get(ctx, key, in, r.ttl)
	span.SetAttributes(attribute.Bool(tracing.AttrCacheHit, hit))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn(log.CatReader, "query failed", "query", name, "key", key, "error", err)
		return v, err
	}
	span.SetStatus(codes.Ok, "")
	log.Debug(log.CatReader, "query done", "query", name, "key", key, "cache_hit", hit)
	return v, nil
}

func (r *Readers) fetchPalette(ctx context.Context, sid string) ([]PaletteEntry, error) {
	var out []PaletteEntry
	if err := r.q.Do(ctx, api.RoutePalette, sid, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []PaletteEntry{}
	}
	return out, nil
}

func (r *Readers) fetchGrid(ctx context.Context, sid string) (string, error) {
	var raw json.RawMessage
	if err := r.q.Do(ctx, api.RouteGrid, sid, nil, &raw); err != nil {
		return "", err
	}
	return NormalizeGridImage(raw), nil
}

func (r *Readers) fetchParams(ctx context.Context, sid string) (Params, error) {
	var out Params
	if err := r.q.Do(ctx, api.RouteParams, sid, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = Params{}
	}
	return out, nil
}

func (r *Readers) fetchPixel(ctx context.Context, in pixelQuery) (int, error) {
	payload := struct {
		X int `json:"x"`
		Y int `json:"y"`
	}{in.X, in.Y}
	var out struct {
		Index *int `json:"index"`
	}
	if err := r.q.Do(ctx, api.RouteQueryPixel, in.SessionID, payload, &out); err != nil {
		return NoPixel, err
	}
	if out.Index == nil {
		return NoPixel, nil
	}
	return *out.Index, nil
}

func (r *Readers) fetchClusters(ctx context.Context, sid string) ([]Cluster, error) {
	var out struct {
		Clusters []Cluster `json:"clusters"`
	}
	if err := r.q.Do(ctx, api.RouteClusters, sid, nil, &out); err != nil {
		return nil, err
	}
	if out.Clusters == nil {
		return []Cluster{}, nil
	}
	return out.Clusters, nil
}
