//go:build windows

package capability

import (
	"syscall"

	"github.com/ebitengine/purego"
)

// DlOpener opens artifacts with LoadLibrary.
type DlOpener struct{}

// Open loads the DLL at path.
func (DlOpener) Open(path string) (Library, error) {
	dll, err := syscall.LoadDLL(path)
	if err != nil {
		return nil, err
	}
	return &dllLibrary{dll: dll}, nil
}

type dllLibrary struct {
	dll *syscall.DLL
}

func (l *dllLibrary) Lookup(name string) (uintptr, error) {
	proc, err := l.dll.FindProc(name)
	if err != nil {
		return 0, err
	}
	return proc.Addr(), nil
}

func (l *dllLibrary) Call(addr uintptr, args ...uintptr) uintptr {
	r1, _, _ := purego.SyscallN(addr, args...)
	return r1
}

func (l *dllLibrary) Close() error {
	return l.dll.Release()
}
