// Package observability provides hooks for metrics and tracing of the add
// pipeline.
//
// Libraries never import a metrics backend directly. They emit events through
// the registered hooks, which default to no-ops; the command line entry point
// registers a real implementation when metrics are requested.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    hooks := observability.NewPromHooks()
//	    observability.SetPipelineHooks(hooks)
//	    observability.SetHTTPHooks(hooks)
//	    // ... run application
//	    hooks.WriteToTextfile("poet.prom")
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnResolveStart(ctx, "registry", len(specs))
//	// ... resolve ...
//	observability.Pipeline().OnResolveComplete(ctx, "registry", len(entries), time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the add pipeline.
type PipelineHooks interface {
	// Resolve events, one pair per provider
	OnResolveStart(ctx context.Context, provider string, count int)
	OnResolveComplete(ctx context.Context, provider string, count int, duration time.Duration, err error)

	// Environment events
	OnApplyStart(ctx context.Context, group string, count int)
	OnApplyComplete(ctx context.Context, group string, count int, duration time.Duration, err error)

	// OnManifestWrite records a manifest write.
	OnManifestWrite(ctx context.Context, path string, duration time.Duration, err error)
}

// =============================================================================
// VCS Hooks
// =============================================================================

// VCSHooks receives events from repository checkouts.
type VCSHooks interface {
	// OnCloneStart records the start of a clone.
	OnCloneStart(ctx context.Context, url string)

	// OnCloneComplete records a finished clone.
	OnCloneComplete(ctx context.Context, url string, duration time.Duration, err error)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnResolveStart(context.Context, string, int) {}
func (NoopPipelineHooks) OnResolveComplete(context.Context, string, int, time.Duration, error) {
}
func (NoopPipelineHooks) OnApplyStart(context.Context, string, int)                          {}
func (NoopPipelineHooks) OnApplyComplete(context.Context, string, int, time.Duration, error) {}
func (NoopPipelineHooks) OnManifestWrite(context.Context, string, time.Duration, error)      {}

// NoopVCSHooks is a no-op implementation of VCSHooks.
type NoopVCSHooks struct{}

func (NoopVCSHooks) OnCloneStart(context.Context, string)                             {}
func (NoopVCSHooks) OnCloneComplete(context.Context, string, time.Duration, error) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	vcsHooks      VCSHooks      = NoopVCSHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any pipeline operations.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetVCSHooks registers custom VCS hooks.
func SetVCSHooks(h VCSHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		vcsHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// VCS returns the registered VCS hooks.
func VCS() VCSHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return vcsHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	vcsHooks = NoopVCSHooks{}
	httpHooks = NoopHTTPHooks{}
}
