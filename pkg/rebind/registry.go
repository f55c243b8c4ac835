// Package rebind re-establishes native callback registrations after every
// plugin swap.
//
// Native code never receives a Go pointer. A consumer is registered once and
// identified by a small integer Handle, which is what the plugin stores as the
// callback's user data; the shared trampolines look the consumer up again on
// every invocation.
package rebind

import "sync"

// Handle identifies a registered consumer. Zero is never issued so that a
// null user-data pointer is always rejected.
type Handle uintptr

// Registry maps handles to consumers.
type Registry struct {
	mu      sync.RWMutex
	next    Handle
	entries map[Handle]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[Handle]any{}}
}

// Register stores v and returns its handle.
func (r *Registry) Register(v any) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.entries[r.next] = v
	return r.next
}

// Lookup returns the value registered under h.
func (r *Registry) Lookup(h Handle) (any, bool) {
	if h == 0 {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[h]
	return v, ok
}

// Unregister forgets h. Callbacks still carrying h become no-ops.
func (r *Registry) Unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, h)
}

// Len returns the number of registered values.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
