// File: breaker/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package breaker

import "sync"

// Registry is the process-wide, bounded get-or-insert map from name to
// shared CircuitBreaker instance.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker)}
}

// GetOrCreate returns the existing breaker registered under name, or
// creates one with cfg/onFlip if absent. Policies are fixed at
// creation time: a second call with a different cfg for the same name
// has no effect on the already-registered instance.
func (r *Registry) GetOrCreate(name string, cfg Config, onFlip StateChangeFunc) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, cfg, onFlip)
	r.breakers[name] = b
	return b
}

// Get returns the breaker registered under name, if any.
func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	return b, ok
}
