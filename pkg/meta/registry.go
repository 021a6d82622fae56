// Package meta attaches extra key/value data to audit entries.
//
// An Enricher computes a small map from the response being logged. A
// Registry holds the enrichers of one logger and merges their results into
// the entry's meta section; when two enrichers return the same key, the one
// registered later wins.
package meta

import (
	"context"
	"sync"
)

// Enricher computes meta values for one logged response. Returning nil adds
// nothing.
type Enricher[R any] func(ctx context.Context, resp R) map[string]any

// Registry is an ordered, concurrency-safe list of enrichers.
// The zero value is ready to use.
type Registry[R any] struct {
	mu        sync.RWMutex
	enrichers []Enricher[R]
}

// Register appends enrichers. Nil enrichers are ignored.
func (r *Registry[R]) Register(enrichers ...Enricher[R]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range enrichers {
		if e != nil {
			r.enrichers = append(r.enrichers, e)
		}
	}
}

// Len returns the number of registered enrichers.
func (r *Registry[R]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.enrichers)
}

// Build runs every enricher in registration order and merges the results.
// Enrichers registered while Build runs are not seen by that call.
func (r *Registry[R]) Build(ctx context.Context, resp R) map[string]any {
	r.mu.RLock()
	snapshot := make([]Enricher[R], len(r.enrichers))
	copy(snapshot, r.enrichers)
	r.mu.RUnlock()

	out := make(map[string]any)
	for _, e := range snapshot {
		for k, v := range e(ctx, resp) {
			out[k] = v
		}
	}
	return out
}
