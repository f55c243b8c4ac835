//go:build (darwin || freebsd || linux || windows) && (amd64 || arm64)

package rebind

import (
	"sync"

	"github.com/ebitengine/purego"
)

var (
	nativeOnce sync.Once
	native     *Callbacks
)

// Native returns the process-wide trampolines. purego callbacks are never
// freed, so exactly one is created per kind and every reload reuses it.
func Native() (*Callbacks, error) {
	nativeOnce.Do(func() {
		c := &Callbacks{registry: NewRegistry()}
		c.Log = purego.NewCallback(func(userData, level, msg uintptr) uintptr {
			c.HandleLog(userData, level, msg)
			return 0
		})
		c.Tree = purego.NewCallback(func(userData, nodes, count uintptr) uintptr {
			c.HandleTree(userData, nodes, count)
			return 0
		})
		c.Flush = purego.NewCallback(func(userData, area uintptr) uintptr {
			c.HandleFlush(userData, area)
			return 0
		})
		native = c
	})
	return native, nil
}
