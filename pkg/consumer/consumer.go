// Package consumer holds the long-lived host objects that register native
// callbacks with the UI plugin and must re-register after every reload.
package consumer

import (
	"sync"

	"github.com/grovetools/uireload/pkg/rebind"
)

// registration remembers the handle a consumer holds in a callback registry.
type registration struct {
	mu  sync.Mutex
	reg *rebind.Registry
	h   rebind.Handle
}

// handle returns v's handle in cbs' registry, registering it on first use.
func (r *registration) handle(cbs *rebind.Callbacks, v any) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg != cbs.Registry() {
		if r.reg != nil {
			r.reg.Unregister(r.h)
		}
		r.reg = cbs.Registry()
		r.h = r.reg.Register(v)
	}
	return uintptr(r.h)
}

// release unregisters the handle so late callbacks become no-ops.
func (r *registration) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg != nil {
		r.reg.Unregister(r.h)
		r.reg = nil
		r.h = 0
	}
}
