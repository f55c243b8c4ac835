//go:build !darwin && !freebsd && !linux && !windows

package capability

import (
	"fmt"
	"runtime"
)

// DlOpener is unavailable on this platform.
type DlOpener struct{}

// Open always fails.
func (DlOpener) Open(path string) (Library, error) {
	return nil, fmt.Errorf("loading native plugins is not supported on %s", runtime.GOOS)
}
