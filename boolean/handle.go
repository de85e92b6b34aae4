package boolean

import (
	"sync"
	"sync/atomic"
)

// Handle is the publication slot for graph generations.
//
// Load never blocks. Replacing the published generation swaps a pointer, so
// Evaluators created from an earlier Load keep working against the
// generation they captured, which is never modified.
type Handle struct {
	mu      sync.Mutex // serializes edit sessions
	current atomic.Pointer[Graph]
}

// NewHandle returns a Handle publishing an empty generation.
func NewHandle() *Handle {
	h := &Handle{}
	h.current.Store(NewBuilder().Build())
	return h
}

// Load returns the currently published generation.
func (h *Handle) Load() *Graph {
	return h.current.Load()
}

// Replace publishes the generation under construction in b.
func (h *Handle) Replace(b *Builder) *Graph {
	h.mu.Lock()
	defer h.mu.Unlock()
	g := b.Build()
	h.current.Store(g)
	return g
}

// Modify runs an exclusive edit session on a new generation. If fn returns
// an error the new generation is discarded and the published one stays in
// force; otherwise the new generation is published and returned.
func (h *Handle) Modify(fn func(b *Builder) error) (*Graph, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := NewBuilder()
	if err := fn(b); err != nil {
		return nil, err
	}
	g := b.Build()
	h.current.Store(g)
	return g, nil
}
