// Package reload drives the watch, build, load and publish cycle of the UI
// plugin and keeps the state and log the host displays.
package reload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/uireload/config"
	"github.com/grovetools/uireload/errors"
	"github.com/grovetools/uireload/logging"
	"github.com/grovetools/uireload/pkg/artifact"
	"github.com/grovetools/uireload/pkg/build"
	"github.com/grovetools/uireload/pkg/capability"
	"github.com/sirupsen/logrus"
)

// Builder produces an artifact for an output stem.
type Builder interface {
	RunBuild(ctx context.Context, stem string) (build.Strategy, error)
}

// Loader loads and publishes artifacts. capability.Manager implements it.
type Loader interface {
	Load(path string) (*capability.Table, error)
	Generation() uint64
}

// Store names, lists and retires artifacts. artifact.Store implements it.
type Store interface {
	NewStem(now time.Time) string
	PathFor(stem string) string
	List(active string) ([]artifact.Artifact, error)
	RetireOld(keep int, active string) (artifact.RetireResult, error)
}

// Settings are the coordinator's tunables.
type Settings struct {
	// Initial is loaded by Start, if set.
	Initial      string
	WatchDirs    []string
	Debounce     time.Duration
	PollInterval time.Duration
	MaxArtifacts int
	AutoReload   bool
}

// SettingsFromConfig extracts coordinator settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Initial:      cfg.Plugin.Initial,
		WatchDirs:    append([]string(nil), cfg.Watch.Dirs...),
		Debounce:     cfg.DebounceInterval(),
		PollInterval: cfg.PollTick(),
		MaxArtifacts: cfg.Retention.MaxArtifacts,
		AutoReload:   cfg.AutoReloadEnabled(),
	}
}

const (
	defaultPollInterval = 50 * time.Millisecond
	commandQueueSize    = 16
)

// Coordinator owns the reload state machine. Cycles run on the goroutine
// executing Run; the host reads state through Snapshot, Generation and the
// log accessors, none of which block on a build.
type Coordinator struct {
	settings Settings
	builder  Builder
	loader   Loader
	store    Store
	ticks    <-chan struct{}
	now      func() time.Time
	logger   *logrus.Entry

	cmds    chan func(context.Context)
	cycleMu sync.Mutex
	started atomic.Bool
	done    chan struct{}

	mu            sync.Mutex
	status        Status
	currentPath   string
	lastReload    time.Time
	abiDescriptor string
	lastErr       error
	autoReload    bool
	maxArtifacts  int

	logMu sync.RWMutex
	log   []LogEntry
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTicks sets the change tick source, usually a watcher's Ticks().
func WithTicks(ticks <-chan struct{}) Option {
	return func(c *Coordinator) { c.ticks = ticks }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Entry) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New returns a coordinator in StatusUnknown.
func New(settings Settings, builder Builder, loader Loader, store Store, opts ...Option) *Coordinator {
	if settings.PollInterval <= 0 {
		settings.PollInterval = defaultPollInterval
	}
	c := &Coordinator{
		settings:     settings,
		builder:      builder,
		loader:       loader,
		store:        store,
		now:          time.Now,
		cmds:         make(chan func(context.Context), commandQueueSize),
		done:         make(chan struct{}),
		status:       StatusUnknown,
		autoReload:   settings.AutoReload,
		maxArtifacts: clampArtifacts(settings.MaxArtifacts),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewLogger("reload")
	}
	return c
}

func clampArtifacts(n int) int {
	return max(config.MinArtifacts, min(n, config.MaxArtifacts))
}

// Start installs the configured initial plugin, then runs the loop in a new
// goroutine until ctx is done. A failed initial load is logged and reflected
// in status; it does not stop the watcher.
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("coordinator already started")
	}
	if c.settings.Initial != "" {
		c.cycleMu.Lock()
		if err := c.install(c.settings.Initial, ""); err != nil {
			c.fail(StatusBuildFailed, "", "Initial load failed", err)
		}
		c.cycleMu.Unlock()
	}
	c.appendLog(logrus.InfoLevel, "", "Hot reload watcher started")

	go func() {
		defer close(c.done)
		c.Run(ctx)
	}()
	return nil
}

// Done is closed when the loop started by Start returns.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Run debounces ticks and executes queued commands until ctx is done. A
// rebuild fires once no tick has arrived for the debounce interval; ticks
// arriving during a build start a new quiet window afterwards.
func (c *Coordinator) Run(ctx context.Context) {
	poll := time.NewTicker(c.settings.PollInterval)
	defer poll.Stop()

	var lastEvent time.Time
	pending := false

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-c.ticks:
			if !ok {
				c.ticks = nil
				continue
			}
			lastEvent = c.now()
			pending = true
		case cmd := <-c.cmds:
			cmd(ctx)
		case <-poll.C:
			if pending && c.now().Sub(lastEvent) >= c.settings.Debounce {
				pending = false
				c.onQuiesced(ctx)
			}
		}
	}
}

func (c *Coordinator) onQuiesced(ctx context.Context) {
	if !c.AutoReload() {
		c.setStatus(StatusIdle)
		c.appendLog(logrus.InfoLevel, "", "Change detected, auto reload is off")
		return
	}
	c.appendLog(logrus.InfoLevel, "", "Stable change detected. Rebuilding...")
	_ = c.Cycle(ctx)
}

// enqueue hands cmd to the loop without blocking the caller.
func (c *Coordinator) enqueue(name string, cmd func(context.Context)) bool {
	select {
	case c.cmds <- cmd:
		return true
	default:
		c.appendLog(logrus.WarnLevel, "", fmt.Sprintf("Dropped %s request: command queue full", name))
		return false
	}
}

// RequestReload queues a rebuild regardless of the auto reload setting.
func (c *Coordinator) RequestReload() bool {
	return c.enqueue("reload", func(ctx context.Context) {
		c.appendLog(logrus.InfoLevel, "", "Manual reload requested")
		_ = c.Cycle(ctx)
	})
}

// LoadArtifact queues loading an existing build, typically an older one the
// developer picked from the artifact list.
func (c *Coordinator) LoadArtifact(path string) bool {
	return c.enqueue("load", func(context.Context) {
		c.cycleMu.Lock()
		defer c.cycleMu.Unlock()
		id := newCycleID()
		if err := c.install(path, id); err != nil {
			c.fail(StatusBuildFailed, id, "Load failed", err)
		}
	})
}

// Cycle runs one build, load and publish in the calling goroutine. Run uses
// it for debounced and requested reloads; one-shot callers may use it
// directly when no loop is running.
func (c *Coordinator) Cycle(ctx context.Context) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	id := newCycleID()
	c.setStatus(StatusRebuilding)

	stem := c.store.NewStem(c.now())
	path := c.store.PathFor(stem)
	logger := c.logger.WithFields(logrus.Fields{"cycle": id, "stem": stem})

	strategy, err := c.builder.RunBuild(ctx, stem)
	if err != nil {
		c.fail(StatusBuildFailed, id, "Reload failed", err)
		return err
	}
	logger.WithField("strategy", strategy).Debug("Build succeeded")

	if _, err := os.Stat(path); err != nil {
		missing := errors.ArtifactMissing(path).WithDetail("strategy", string(strategy))
		c.fail(StatusPluginMissing, id, "Plugin missing", missing)
		return missing
	}

	if err := c.install(path, id); err != nil {
		c.fail(StatusBuildFailed, id, "Reload failed", err)
		return err
	}
	c.cull(id)
	c.appendLog(logrus.InfoLevel, id, "Hot reload successful")
	return nil
}

// install loads and publishes path. The caller holds cycleMu and records a
// failure. On failure the published table, current path and descriptor are
// left as they were.
func (c *Coordinator) install(path, cycle string) error {
	c.setStatus(StatusLoadingPlugin)

	table, err := c.loader.Load(path)
	if err != nil {
		return err
	}

	now := c.now()
	c.mu.Lock()
	c.currentPath = path
	c.lastReload = now
	c.abiDescriptor = "hash_" + filepath.Base(path)
	c.status = StatusReloadSuccessful
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"cycle":      cycle,
		"path":       path,
		"generation": table.Generation(),
	}).Debug("Plugin published")
	c.appendLog(logrus.InfoLevel, cycle, "Loaded: "+path)
	return nil
}

func (c *Coordinator) fail(status Status, cycle, prefix string, err error) {
	c.mu.Lock()
	c.status = status
	c.lastErr = err
	c.mu.Unlock()
	c.appendLog(logrus.ErrorLevel, cycle, fmt.Sprintf("%s: %v", prefix, err))
}

// cull retires old artifacts, never the active one.
func (c *Coordinator) cull(cycle string) {
	c.mu.Lock()
	keep, active := c.maxArtifacts, c.currentPath
	c.mu.Unlock()

	result, err := c.store.RetireOld(keep, active)
	if err != nil {
		c.appendLog(logrus.WarnLevel, cycle, fmt.Sprintf("Failed to list old builds: %v", err))
		return
	}
	for _, a := range result.Removed {
		c.appendLog(logrus.InfoLevel, cycle, "Removed old build: "+a.Path)
	}
	for path, ferr := range result.Failed {
		c.appendLog(logrus.WarnLevel, cycle, fmt.Sprintf("Failed to remove %s: %v", path, ferr))
	}
}

// SetAutoReload enables or disables rebuilding on file changes. Manual
// reloads are unaffected.
func (c *Coordinator) SetAutoReload(enabled bool) {
	c.mu.Lock()
	changed := c.autoReload != enabled
	c.autoReload = enabled
	c.mu.Unlock()
	if changed {
		c.appendLog(logrus.InfoLevel, "", fmt.Sprintf("Auto reload %s", onOff(enabled)))
	}
}

// AutoReload reports whether file changes trigger rebuilds.
func (c *Coordinator) AutoReload() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoReload
}

// SetMaxArtifacts sets how many builds are kept, clamped to the allowed
// range, and returns the value applied. It takes effect at the next cull.
func (c *Coordinator) SetMaxArtifacts(n int) int {
	n = clampArtifacts(n)
	c.mu.Lock()
	c.maxArtifacts = n
	c.mu.Unlock()
	return n
}

// MaxArtifacts returns the retention limit.
func (c *Coordinator) MaxArtifacts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxArtifacts
}

// Status returns the current status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Coordinator) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Generation returns the number of successful publishes. Consumers compare
// it with their own cursor to detect a swap.
func (c *Coordinator) Generation() uint64 {
	return c.loader.Generation()
}

// LastError returns the error of the last failed operation, cleared by the
// next successful load.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		CurrentPath:   c.currentPath,
		WatchDirs:     append([]string(nil), c.settings.WatchDirs...),
		Debounce:      c.settings.Debounce,
		MaxArtifacts:  c.maxArtifacts,
		AutoReload:    c.autoReload,
		Status:        c.status,
		LastReload:    c.lastReload,
		ABIDescriptor: c.abiDescriptor,
		Generation:    c.loader.Generation(),
		LastError:     c.lastErr,
	}
}

// Builds lists the available artifacts with the loaded one marked active.
func (c *Coordinator) Builds() ([]artifact.Artifact, error) {
	c.mu.Lock()
	active := c.currentPath
	c.mu.Unlock()
	return c.store.List(active)
}

func (c *Coordinator) appendLog(level logrus.Level, cycle, msg string) {
	entry := LogEntry{Time: c.now(), Level: level, Message: msg, Cycle: cycle}
	c.logMu.Lock()
	c.log = append(c.log, entry)
	c.logMu.Unlock()

	l := c.logger
	if cycle != "" {
		l = l.WithField("cycle", cycle)
	}
	l.Log(level, msg)
}

// Log returns a copy of the whole reload log.
func (c *Coordinator) Log() []LogEntry {
	return c.LogSince(0)
}

// LogSince returns the entries from index n on, for incremental readers.
func (c *Coordinator) LogSince(n int) []LogEntry {
	c.logMu.RLock()
	defer c.logMu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(c.log) {
		return nil
	}
	return append([]LogEntry(nil), c.log[n:]...)
}

// LogTail returns the last n entries.
func (c *Coordinator) LogTail(n int) []LogEntry {
	c.logMu.RLock()
	defer c.logMu.RUnlock()
	start := max(0, len(c.log)-n)
	return append([]LogEntry(nil), c.log[start:]...)
}

// LogLen returns the number of log entries.
func (c *Coordinator) LogLen() int {
	c.logMu.RLock()
	defer c.logMu.RUnlock()
	return len(c.log)
}

func newCycleID() string {
	return uuid.NewString()[:8]
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
