package host

import (
	"sync"

	"reviewpanel/internal/protocol"
)

// Surface is a live display surface the controller can talk to.
type Surface interface {
	// Post delivers a message to the surface. It must not block on the
	// surface's event loop.
	Post(msg protocol.Message)
	// Reveal brings the surface to the front.
	Reveal()
}

// Factory creates a surface. The surface must call dispose when the user
// closes it.
type Factory func(dispose func()) Surface

// Registry holds at most one live surface per session. It is created
// lazily, revealed when it already exists, and forgotten when disposed.
type Registry struct {
	// create serializes Ensure so concurrent triggers share one surface.
	create sync.Mutex

	mu      sync.Mutex
	factory Factory
	current Surface
	// owner is the generation of the surface being created or live; 0 when
	// none.
	owner uint64
	gen   uint64
}

// NewRegistry returns an empty registry using factory for creation.
func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory}
}

// Ensure returns the live surface, creating it when none exists.
// created reports which happened; an existing surface is revealed.
func (r *Registry) Ensure() (s Surface, created bool) {
	r.create.Lock()
	defer r.create.Unlock()

	r.mu.Lock()
	if r.current != nil {
		s = r.current
		r.mu.Unlock()
		s.Reveal()
		return s, false
	}
	r.gen++
	gen := r.gen
	r.owner = gen
	r.mu.Unlock()

	// The factory may block on the program, so only create is held. dispose
	// takes mu alone and stays usable from the event loop meanwhile.
	s = r.factory(func() { r.dispose(gen) })

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner == gen {
		r.current = s
	}
	// Otherwise the surface was closed while being created; it is returned
	// once and forgotten.
	return s, true
}

// Current returns the live surface, if any.
func (r *Registry) Current() (Surface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.current != nil
}

func (r *Registry) dispose(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Only the surface created for gen may clear itself.
	if r.owner == gen {
		r.current = nil
		r.owner = 0
	}
}
