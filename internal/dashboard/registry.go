package dashboard

import (
	"sync"
)

// Factory builds the controller of a new session
type Factory func(userID string) *Controller

// Registry keeps one controller per signed-in user
type Registry struct {
	factory  Factory
	sessions map[string]*Controller
	mu       sync.Mutex
}

// NewRegistry creates an empty registry
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:  factory,
		sessions: make(map[string]*Controller),
	}
}

// Get returns the session of userID
func (r *Registry) Get(userID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[userID]
	return c, ok
}

// GetOrCreate returns the session of userID, creating it when absent. created
// reports whether a new session was made.
func (r *Registry) GetOrCreate(userID string) (c *Controller, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.sessions[userID]; ok {
		return c, false
	}
	c = r.factory(userID)
	r.sessions[userID] = c
	return c, true
}

// Drop resets and forgets the session of userID
func (r *Registry) Drop(userID string) bool {
	r.mu.Lock()
	c, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if ok {
		c.Reset()
	}
	return ok
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
