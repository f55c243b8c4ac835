package capability

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Table is the resolved symbol set of one loaded artifact, paired with the
// library handle those addresses live in. A Table never changes after it is
// built; a reload replaces it.
type Table struct {
	path       string
	generation uint64
	loadedAt   time.Time
	lib        Library
	addrs      map[string]uintptr

	// refs counts the published reference plus every outstanding Lease.
	refs      atomic.Int64
	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
	logger    *logrus.Entry
}

// Path returns the artifact the table was loaded from.
func (t *Table) Path() string { return t.path }

// Generation returns the publish generation, starting at 1.
func (t *Table) Generation() uint64 { return t.generation }

// LoadedAt returns when the artifact was opened.
func (t *Table) LoadedAt() time.Time { return t.loadedAt }

// Has reports whether name was resolved.
func (t *Table) Has(name string) bool {
	_, ok := t.addrs[name]
	return ok
}

// Lookup returns the address of a resolved symbol.
func (t *Table) Lookup(name string) (uintptr, bool) {
	addr, ok := t.addrs[name]
	return addr, ok
}

// Symbols returns the resolved symbol names, sorted.
func (t *Table) Symbols() []string {
	names := make([]string, 0, len(t.addrs))
	for n := range t.addrs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Call invokes a resolved function. The caller must hold a Lease on t.
func (t *Table) Call(name string, args ...uintptr) (uintptr, error) {
	addr, ok := t.addrs[name]
	if !ok {
		return 0, fmt.Errorf("symbol %s not available in %s", name, t.path)
	}
	if t.closed.Load() {
		return 0, fmt.Errorf("call to %s on unloaded artifact %s", name, t.path)
	}
	return t.lib.Call(addr, args...), nil
}

// Closed reports whether the library has been unloaded.
func (t *Table) Closed() bool { return t.closed.Load() }

func (t *Table) retain() {
	t.refs.Add(1)
}

// release drops one reference and unloads the library on the last one.
func (t *Table) release() {
	if t.refs.Add(-1) == 0 {
		t.close()
	}
}

func (t *Table) close() {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.closeErr = t.lib.Close()
		entry := t.logger.WithFields(logrus.Fields{"path": t.path, "generation": t.generation})
		if t.closeErr != nil {
			entry.WithError(t.closeErr).Warn("Failed to unload artifact")
			return
		}
		entry.Debug("Unloaded artifact")
	})
}

// Lease pins a Table so its library stays loaded until Release.
type Lease struct {
	table    *Table
	released atomic.Bool
}

// Table returns the leased table.
func (l *Lease) Table() *Table { return l.table }

// Release unpins the table. Calling it more than once is harmless.
func (l *Lease) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.table.release()
	}
}
