//go:build darwin || freebsd || linux

package capability

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// DlOpener opens artifacts with dlopen, without cgo.
type DlOpener struct{}

// Open loads path with RTLD_NOW|RTLD_LOCAL so every relocation is resolved up
// front and two generations never share symbols.
func (DlOpener) Open(path string) (Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, err
	}
	return &dlLibrary{handle: handle, path: path}, nil
}

type dlLibrary struct {
	handle uintptr
	path   string
}

func (l *dlLibrary) Lookup(name string) (uintptr, error) {
	addr, err := purego.Dlsym(l.handle, name)
	if err != nil {
		return 0, err
	}
	if addr == 0 {
		return 0, fmt.Errorf("symbol %s resolved to nil", name)
	}
	return addr, nil
}

func (l *dlLibrary) Call(addr uintptr, args ...uintptr) uintptr {
	r1, _, _ := purego.SyscallN(addr, args...)
	return r1
}

func (l *dlLibrary) Close() error {
	return purego.Dlclose(l.handle)
}
