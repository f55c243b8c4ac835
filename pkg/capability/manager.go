package capability

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grovetools/uireload/errors"
	"github.com/grovetools/uireload/logging"
	"github.com/sirupsen/logrus"
)

// Manager owns the published Table. Readers take the read lock only long
// enough to pin the current table; Publish takes the write lock only for the
// swap. A replaced table's library is unloaded once its last Lease is
// released, so a call that started on the old artifact always finishes on a
// loaded library.
type Manager struct {
	opener  Opener
	symbols []Symbol
	logger  *logrus.Entry

	mu         sync.RWMutex
	current    *Table
	generation atomic.Uint64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *logrus.Entry) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a manager resolving symbols through opener.
func NewManager(opener Opener, symbols []Symbol, opts ...ManagerOption) *Manager {
	m := &Manager{
		opener:  opener,
		symbols: append([]Symbol(nil), symbols...),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.NewLogger("capability")
	}
	return m
}

// Open loads path and resolves every symbol without publishing anything.
// A missing required symbol unloads the library and fails the whole open.
func (m *Manager) Open(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ArtifactMissing(path)
		}
		return nil, errors.LoadFailed(path, err)
	}

	lib, err := m.opener.Open(path)
	if err != nil {
		return nil, errors.LoadFailed(path, err)
	}

	addrs := make(map[string]uintptr, len(m.symbols))
	for _, sym := range m.symbols {
		addr, err := lib.Lookup(sym.Name)
		if err != nil || addr == 0 {
			if !sym.Required {
				m.logger.WithField("symbol", sym.Name).Debug("Optional symbol not found")
				continue
			}
			if closeErr := lib.Close(); closeErr != nil {
				m.logger.WithError(closeErr).WithField("path", path).Warn("Failed to unload rejected artifact")
			}
			return nil, errors.SymbolMissing(path, sym.Name, err)
		}
		addrs[sym.Name] = addr
	}

	t := &Table{
		path:     path,
		loadedAt: time.Now(),
		lib:      lib,
		addrs:    addrs,
		logger:   m.logger,
	}
	t.refs.Store(1)
	return t, nil
}

// Publish makes t the current table and retires the previous one.
func (m *Manager) Publish(t *Table) {
	t.generation = m.generation.Add(1)

	m.mu.Lock()
	old := m.current
	m.current = t
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"path":       t.path,
		"generation": t.generation,
		"symbols":    len(t.addrs),
	}).Info("Published capability table")

	if old != nil {
		old.release()
	}
}

// Load opens path and publishes the result. On error the current table is
// left untouched.
func (m *Manager) Load(path string) (*Table, error) {
	t, err := m.Open(path)
	if err != nil {
		return nil, err
	}
	m.Publish(t)
	return t, nil
}

// Acquire pins the current table. It fails with NO_PLUGIN before the first
// publish.
func (m *Manager) Acquire() (*Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, errors.NoPlugin()
	}
	m.current.retain()
	return &Lease{table: m.current}, nil
}

// Call runs fn with the current table pinned for its duration. fn must not
// keep addresses from the table after it returns.
func (m *Manager) Call(fn func(*Table) error) error {
	lease, err := m.Acquire()
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(lease.Table())
}

// Current returns the published table's path and generation.
func (m *Manager) Current() (path string, generation uint64, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return "", 0, false
	}
	return m.current.path, m.current.generation, true
}

// Generation returns the number of tables published so far.
func (m *Manager) Generation() uint64 {
	return m.generation.Load()
}

// Close unpublishes the current table. Its library is unloaded once
// outstanding leases are released.
func (m *Manager) Close() error {
	m.mu.Lock()
	old := m.current
	m.current = nil
	m.mu.Unlock()
	if old != nil {
		old.release()
	}
	return nil
}
