//go:build !((darwin || freebsd || linux || windows) && (amd64 || arm64))

package rebind

import (
	"fmt"
	"runtime"
)

// Native is unavailable on this platform.
func Native() (*Callbacks, error) {
	return nil, fmt.Errorf("native callbacks are not supported on %s/%s", runtime.GOOS, runtime.GOARCH)
}
