package capture

import (
	"log/slog"
	"sync"

	"quill/internal/logging"
)

// Handle is a live capture resource. Release must be idempotent; releasing
// twice is safe.
type Handle interface {
	Release() error
}

// HandleFunc adapts a release closure to the Handle interface.
type HandleFunc func() error

// Release invokes the closure.
func (f HandleFunc) Release() error {
	if f == nil {
		return nil
	}
	return f()
}

// Registry tracks live capture handles process-wide so they can be
// force-released on shutdown, independent of any single owner's lifecycle.
// It is constructed at bootstrap and injected, never an ambient global.
type Registry struct {
	logger *slog.Logger

	mu      sync.Mutex
	handles []Handle
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logging.WithComponent(logger, "capture-registry")}
}

// Register adds a handle to the process-wide list.
func (r *Registry) Register(handle Handle) {
	if handle == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = append(r.handles, handle)
}

// ReleaseAll releases every registered handle and clears the list. Invoked
// on process-wide teardown; idempotent, and redundant with owners releasing
// their own handles.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	handles := r.handles
	r.handles = nil
	r.mu.Unlock()

	for _, handle := range handles {
		if err := handle.Release(); err != nil {
			r.logger.Warn("release capture handle failed", logging.Error(err))
		}
	}
}

// Len reports how many handles are currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
