// Package sanitize rewrites or rejects entry content before storage.
// Sanitizers are looked up per content type through a Factory.
package sanitize

import (
	"context"
	"sync"
)

// Sanitizer cleans a piece of content. It returns the (possibly
// rewritten) text, or an error when the content must be rejected.
type Sanitizer interface {
	Sanitize(ctx context.Context, text string) (string, error)
}

// Factory resolves the sanitizer for a content type.
type Factory interface {
	SanitizerFor(contentType string) (Sanitizer, error)
}

// passThrough returns content unchanged. It is the registry default, so
// ingestion without registered sanitizers is an identity transform.
type passThrough struct{}

var _ Sanitizer = (*passThrough)(nil)

// NewPassThrough creates the identity sanitizer.
func NewPassThrough() Sanitizer {
	return &passThrough{}
}

func (p *passThrough) Sanitize(_ context.Context, text string) (string, error) {
	return text, nil
}

// Registry maps content types to sanitizers. Types without a
// registration fall back to pass-through.
type Registry struct {
	mu         sync.RWMutex
	sanitizers map[string]Sanitizer
	fallback   Sanitizer
}

var _ Factory = (*Registry)(nil)

// NewRegistry creates an empty registry with a pass-through fallback.
func NewRegistry() *Registry {
	return &Registry{
		sanitizers: make(map[string]Sanitizer),
		fallback:   NewPassThrough(),
	}
}

// Register installs a sanitizer for a content type, replacing any
// previous registration.
func (r *Registry) Register(contentType string, s Sanitizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sanitizers[contentType] = s
}

func (r *Registry) SanitizerFor(contentType string) (Sanitizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.sanitizers[contentType]; ok {
		return s, nil
	}
	return r.fallback, nil
}
