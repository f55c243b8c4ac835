// Package capabilitytest provides in-memory native libraries for tests.
package capabilitytest

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/grovetools/uireload/pkg/capability"
)

// Func is a fake native function.
type Func func(args ...uintptr) uintptr

// nextAddr hands out distinct fake addresses across all libraries.
var nextAddr atomic.Uintptr

func init() {
	nextAddr.Store(0x10000)
}

// Library is a fake capability.Library backed by Go functions.
type Library struct {
	Path string

	mu      sync.Mutex
	byName  map[string]uintptr
	byAddr  map[uintptr]Func
	calls   map[string]int
	names   map[uintptr]string
	closed  bool
	closeCt int
}

// NewLibrary returns a library exporting funcs.
func NewLibrary(path string, funcs map[string]Func) *Library {
	l := &Library{
		Path:   path,
		byName: map[string]uintptr{},
		byAddr: map[uintptr]Func{},
		calls:  map[string]int{},
		names:  map[uintptr]string{},
	}
	for name, fn := range funcs {
		l.Export(name, fn)
	}
	return l
}

// Export adds or replaces a symbol.
func (l *Library) Export(name string, fn Func) {
	l.mu.Lock()
	defer l.mu.Unlock()
	addr := nextAddr.Add(0x10)
	l.byName[name] = addr
	l.byAddr[addr] = fn
	l.names[addr] = name
}

// Lookup implements capability.Library.
func (l *Library) Lookup(name string) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	addr, ok := l.byName[name]
	if !ok {
		return 0, fmt.Errorf("undefined symbol: %s", name)
	}
	return addr, nil
}

// Call implements capability.Library. Calling into a closed library panics,
// which is what a real unloaded artifact would do at best.
func (l *Library) Call(addr uintptr, args ...uintptr) uintptr {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		panic(fmt.Sprintf("call into unloaded library %s", l.Path))
	}
	fn, ok := l.byAddr[addr]
	name := l.names[addr]
	l.calls[name]++
	l.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("bad address %#x in %s", addr, l.Path))
	}
	if fn == nil {
		return 0
	}
	return fn(args...)
}

// Close implements capability.Library.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.closeCt++
	return nil
}

// Closed reports whether Close was called.
func (l *Library) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// CloseCount returns how many times Close was called.
func (l *Library) CloseCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeCt
}

// Calls returns how many times name was called.
func (l *Library) Calls(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[name]
}

// Opener is a fake capability.Opener serving registered libraries by path.
type Opener struct {
	mu     sync.Mutex
	libs   map[string]*Library
	errs   map[string]error
	opened []string
}

var _ capability.Opener = (*Opener)(nil)

// NewOpener returns an empty opener.
func NewOpener() *Opener {
	return &Opener{libs: map[string]*Library{}, errs: map[string]error{}}
}

// Register serves lib for its path.
func (o *Opener) Register(lib *Library) *Library {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.libs[lib.Path] = lib
	return lib
}

// Fail makes opening path return err.
func (o *Opener) Fail(path string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs[path] = err
}

// Open implements capability.Opener.
func (o *Opener) Open(path string) (capability.Library, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, path)
	if err, ok := o.errs[path]; ok {
		return nil, err
	}
	lib, ok := o.libs[path]
	if !ok {
		return nil, fmt.Errorf("%s: cannot open shared object file", path)
	}
	return lib, nil
}

// Opened returns every path Open was called with.
func (o *Opener) Opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}
