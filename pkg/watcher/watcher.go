// Package watcher turns file system activity under a set of source
// directories into opaque change ticks.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/uireload/errors"
	"github.com/grovetools/uireload/logging"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// tickBuffer bounds the number of undelivered ticks. Ticks carry no data, so
// dropping one while the buffer is full loses nothing.
const tickBuffer = 64

// DefaultIgnore lists editor and VCS noise that never triggers a rebuild.
var DefaultIgnore = []string{
	".git",
	"**/.git",
	"**/*.swp",
	"**/*.swx",
	"**/*~",
	"**/.#*",
	"**/4913",
	"**/.DS_Store",
}

// Watcher watches directory trees recursively.
type Watcher struct {
	fsw     *fsnotify.Watcher
	roots   []string
	ignore  *patternmatcher.PatternMatcher
	ticks   chan struct{}
	logger  *logrus.Entry
	mu      sync.Mutex
	watched map[string]bool
	closed  bool
}

type options struct {
	ignore []string
	logger *logrus.Entry
}

// Option configures a Watcher.
type Option func(*options)

// WithIgnore adds ignore patterns, matched against the path relative to its
// watched root.
func WithIgnore(patterns ...string) Option {
	return func(o *options) { o.ignore = append(o.ignore, patterns...) }
}

// WithLogger sets the watcher's logger.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) { o.logger = l }
}

// New starts watching every directory under each root. A root that does not
// exist, is not a directory, or cannot be watched fails with WATCHER_INIT.
func New(roots []string, opts ...Option) (*Watcher, error) {
	o := options{ignore: append([]string(nil), DefaultIgnore...)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewLogger("watcher")
	}

	if len(roots) == 0 {
		return nil, errors.WatcherInit("", fmt.Errorf("no directories to watch"))
	}

	matcher, err := patternmatcher.New(o.ignore)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid ignore pattern")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WatcherInit(roots[0], err)
	}

	w := &Watcher{
		fsw:     fsw,
		ignore:  matcher,
		ticks:   make(chan struct{}, tickBuffer),
		logger:  o.logger,
		watched: make(map[string]bool),
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			fsw.Close()
			return nil, errors.WatcherInit(root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			fsw.Close()
			return nil, errors.WatcherInit(root, err)
		}
		if !info.IsDir() {
			fsw.Close()
			return nil, errors.WatcherInit(root, fmt.Errorf("not a directory"))
		}
		w.roots = append(w.roots, abs)
		if err := w.addTree(abs); err != nil {
			fsw.Close()
			return nil, errors.WatcherInit(root, err)
		}
	}

	w.logger.WithField("dirs", len(w.watched)).Debug("Watcher initialized")
	return w, nil
}

// Ticks returns the change tick stream.
func (w *Watcher) Ticks() <-chan struct{} {
	return w.ticks
}

// Roots returns the absolute watched roots.
func (w *Watcher) Roots() []string {
	return append([]string(nil), w.roots...)
}

// Run forwards file system events as ticks until ctx is done or the watcher
// is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Watcher error")
			// An overflow means events were lost, so assume something changed.
			if err == fsnotify.ErrEventOverflow {
				w.tick()
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if w.ignored(event.Name) {
		return
	}
	w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.WithError(err).WithField("dir", event.Name).Warn("Failed to watch new directory")
			}
		}
	}
	if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		w.forget(event.Name)
	}
	w.tick()
}

func (w *Watcher) tick() {
	select {
	case w.ticks <- struct{}{}:
	default:
	}
}

// addTree watches dir and every directory below it that is not ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// A subdirectory vanished mid-walk.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(path) {
			return filepath.SkipDir
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed || w.watched[path] {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.watched[path] = true
		return nil
	})
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prefix := path + string(filepath.Separator)
	for dir := range w.watched {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(w.watched, dir)
		}
	}
}

// ignored matches path, relative to the root containing it, against the
// ignore patterns.
func (w *Watcher) ignored(path string) bool {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		match, err := w.ignore.MatchesOrParentMatches(filepath.ToSlash(rel))
		if err == nil && match {
			return true
		}
	}
	return false
}

// WatchedDirs returns how many directories are being watched.
func (w *Watcher) WatchedDirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// Close releases the fsnotify handle. Run returns afterwards.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	return w.fsw.Close()
}
