package handler

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds registered handlers keyed by task-type tag. Registration
// happens at startup; after that the registry is effectively read-only and
// resolution is a cheap RLock lookup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler to the registry under the given task-type tag.
// Registering the same tag twice replaces the previous handler.
func (r *Registry) Register(typeTag string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[typeTag] = h
}

// Resolve returns the handler registered for the given task-type tag.
// Returns an error if no handler is registered.
func (r *Registry) Resolve(typeTag string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[typeTag]
	if !ok {
		return nil, fmt.Errorf("no handler registered for type %q", typeTag)
	}
	return h, nil
}

// Types returns all registered task-type tags, sorted for a stable API
// response.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for tag := range r.handlers {
		types = append(types, tag)
	}
	sort.Strings(types)
	return types
}
