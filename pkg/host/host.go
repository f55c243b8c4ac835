// Package host runs the per-frame side of hot reload: it rebinds consumers
// after a reload and drives the plugin's renderer.
package host

import (
	"context"
	"time"

	"github.com/grovetools/uireload/errors"
	"github.com/grovetools/uireload/logging"
	"github.com/grovetools/uireload/pkg/consumer"
	"github.com/grovetools/uireload/pkg/rebind"
	"github.com/grovetools/uireload/pkg/uiplugin"
	"github.com/sirupsen/logrus"
)

// DefaultFrameInterval paces Run at roughly 30 frames per second.
const DefaultFrameInterval = 33 * time.Millisecond

// Host owns the long-lived consumers of the plugin. Frame must be called
// from a single goroutine.
type Host struct {
	src      rebind.Source
	rebinder *rebind.Rebinder
	logger   *logrus.Entry

	Flush    *consumer.FlushCollector
	Renderer *consumer.Renderer
	Logs     *consumer.LogBridge
	Tree     *consumer.TreeCollector

	lastErr string
}

type options struct {
	logger      *logrus.Entry
	logCapacity int
	flash       bool
	now         func() time.Time
}

// Option configures a Host.
type Option func(*options)

// WithLogger sets the host logger.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) { o.logger = l }
}

// WithLogCapacity caps the plugin log buffer.
func WithLogCapacity(n int) Option {
	return func(o *options) { o.logCapacity = n }
}

// WithFlash enables flush-area flashing from the start.
func WithFlash(enabled bool) Option {
	return func(o *options) { o.flash = enabled }
}

// WithClock overrides time.Now for the renderer and flush collector.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New wires the consumers to src. Flush is bound before the renderer so the
// redraws of setup are recorded.
func New(src rebind.Source, cbs *rebind.Callbacks, opts ...Option) *Host {
	o := options{logCapacity: consumer.DefaultLogCapacity, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewLogger("host")
	}

	h := &Host{
		src:    src,
		logger: o.logger,
		Flush:  consumer.NewFlushCollector(o.flash, consumer.WithClock(o.now)),
		Logs: consumer.NewLogBridge(o.logCapacity,
			consumer.WithLogBridgeLogger(o.logger.WithField("source", "plugin"))),
		Tree: consumer.NewTreeCollector(),
	}
	h.Renderer = consumer.NewRenderer(h.Flush, consumer.WithRendererClock(o.now))

	h.rebinder = rebind.New(src, cbs, rebind.WithLogger(o.logger))
	h.rebinder.Add(h.Flush)
	h.rebinder.Add(h.Renderer)
	h.rebinder.Add(h.Logs)
	h.rebinder.Add(h.Tree)
	return h
}

// Rebinder returns the rebinder driving the consumers.
func (h *Host) Rebinder() *rebind.Rebinder { return h.rebinder }

// Frame rebinds stale consumers and renders one frame. No loaded plugin is
// not an error. Repeated identical errors are logged once.
func (h *Host) Frame() error {
	if _, err := h.rebinder.Poll(); err != nil {
		h.report(err)
		return err
	}
	err := uiplugin.With(h.src, h.Renderer.Frame)
	if errors.Is(err, errors.ErrCodeNoPlugin) {
		err = nil
	}
	h.report(err)
	return err
}

func (h *Host) report(err error) {
	if err == nil {
		h.lastErr = ""
		return
	}
	if msg := err.Error(); msg != h.lastErr {
		h.lastErr = msg
		h.logger.WithError(err).Warn("Frame failed")
	}
}

// Run calls Frame every interval until ctx is done.
func (h *Host) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = h.Frame()
		}
	}
}

// RefreshTree asks the plugin for its object tree.
func (h *Host) RefreshTree() (*consumer.TreeNode, error) {
	var root *consumer.TreeNode
	err := uiplugin.With(h.src, func(p *uiplugin.Plugin) error {
		var err error
		root, err = h.Tree.Refresh(p)
		return err
	})
	return root, err
}

// Close releases the consumers. Call it after the last Frame.
func (h *Host) Close() {
	h.Tree.Close()
	h.Logs.Close()
	h.Renderer.Close()
	h.Flush.Close()
}
