// Package observability exposes event hooks for the pipeline, the
// randomization engine, the result cache and the HTTP API.
//
// Hooks default to no-ops. A binary that wants metrics or tracing registers
// its own implementations once at startup, before any run starts:
//
//	observability.SetEngineHooks(promEngineHooks{})
//
// Libraries only ever read the registry:
//
//	observability.Engine().OnRunComplete(ctx, runID, "converged", tries, elapsed, nil)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the load → randomize → render pipeline.
type PipelineHooks interface {
	// Load events
	OnLoadStart(ctx context.Context, inputs []string)
	OnLoadComplete(ctx context.Context, inputs []string, points int, duration time.Duration, err error)

	// Render events
	OnRenderStart(ctx context.Context, formats []string)
	OnRenderComplete(ctx context.Context, formats []string, duration time.Duration, err error)
}

// =============================================================================
// Engine Hooks
// =============================================================================

// EngineHooks receives events from randomization runs.
type EngineHooks interface {
	// OnRunStart records the start of a search.
	OnRunStart(ctx context.Context, runID string, n1, n2 int)

	// OnRunComplete records the end of a search with its final state.
	OnRunComplete(ctx context.Context, runID, state string, tries int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP API.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records the response status and latency.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnLoadStart(context.Context, []string) {}
func (NoopPipelineHooks) OnLoadComplete(context.Context, []string, int, time.Duration, error) {
}
func (NoopPipelineHooks) OnRenderStart(context.Context, []string)                          {}
func (NoopPipelineHooks) OnRenderComplete(context.Context, []string, time.Duration, error) {}

// NoopEngineHooks is a no-op implementation of EngineHooks.
type NoopEngineHooks struct{}

func (NoopEngineHooks) OnRunStart(context.Context, string, int, int) {}
func (NoopEngineHooks) OnRunComplete(context.Context, string, string, int, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

// registry holds one registered hook implementation.
type registry[T any] struct {
	mu   sync.RWMutex
	noop T
	cur  T
}

func newRegistry[T any](noop T) *registry[T] {
	return &registry[T]{noop: noop, cur: noop}
}

func (r *registry[T]) get() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cur
}

// set ignores nil.
func (r *registry[T]) set(h T) {
	if any(h) == nil {
		return
	}
	r.mu.Lock()
	r.cur = h
	r.mu.Unlock()
}

func (r *registry[T]) reset() {
	r.mu.Lock()
	r.cur = r.noop
	r.mu.Unlock()
}

var (
	pipelineHooks = newRegistry[PipelineHooks](NoopPipelineHooks{})
	engineHooks   = newRegistry[EngineHooks](NoopEngineHooks{})
	cacheHooks    = newRegistry[CacheHooks](NoopCacheHooks{})
	httpHooks     = newRegistry[HTTPHooks](NoopHTTPHooks{})
)

// SetPipelineHooks registers pipeline hooks. Call it before any run starts.
func SetPipelineHooks(h PipelineHooks) { pipelineHooks.set(h) }

// SetEngineHooks registers engine hooks.
func SetEngineHooks(h EngineHooks) { engineHooks.set(h) }

// SetCacheHooks registers cache hooks.
func SetCacheHooks(h CacheHooks) { cacheHooks.set(h) }

// SetHTTPHooks registers HTTP hooks.
func SetHTTPHooks(h HTTPHooks) { httpHooks.set(h) }

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks { return pipelineHooks.get() }

// Engine returns the registered engine hooks.
func Engine() EngineHooks { return engineHooks.get() }

// Cache returns the registered cache hooks.
func Cache() CacheHooks { return cacheHooks.get() }

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks { return httpHooks.get() }

// Reset restores the no-op defaults. Tests use it to isolate registrations.
func Reset() {
	pipelineHooks.reset()
	engineHooks.reset()
	cacheHooks.reset()
	httpHooks.reset()
}
