package consumer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/grovetools/uireload/pkg/rebind"
	"github.com/grovetools/uireload/pkg/uiplugin"
)

// FlashDuration is how long a flushed region stays highlighted.
const FlashDuration = time.Second / 3

// FrameRect is the merged flush region of one scope.
type FrameRect struct {
	At    time.Time
	Rects []uiplugin.Area
}

// FlushCollector records the display regions the plugin redraws.
type FlushCollector struct {
	enabled atomic.Bool
	now     func() time.Time
	reg     registration

	mu     sync.Mutex
	raw    []uiplugin.Area
	events []FrameRect
}

// FlushOption configures a FlushCollector.
type FlushOption func(*FlushCollector)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) FlushOption {
	return func(c *FlushCollector) { c.now = now }
}

// NewFlushCollector returns a collector, optionally enabled.
func NewFlushCollector(enabled bool, opts ...FlushOption) *FlushCollector {
	c := &FlushCollector{now: time.Now}
	c.enabled.Store(enabled)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements rebind.Consumer.
func (c *FlushCollector) Name() string { return "flush" }

// Bind implements rebind.Consumer.
func (c *FlushCollector) Bind(p *uiplugin.Plugin, cbs *rebind.Callbacks) error {
	if !p.Has(uiplugin.SymRegisterFlushArea) {
		return nil
	}
	return p.RegisterFlushCallback(cbs.Flush, c.reg.handle(cbs, c))
}

// ReceiveFlush implements rebind.FlushSink.
func (c *FlushCollector) ReceiveFlush(area uiplugin.Area) {
	c.mu.Lock()
	c.raw = append(c.raw, area)
	c.mu.Unlock()
}

// Scope runs fn and records the regions flushed during it as one event.
func (c *FlushCollector) Scope(fn func() error) error {
	c.mu.Lock()
	c.raw = c.raw[:0]
	c.mu.Unlock()

	err := fn()
	if !c.Enabled() {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.raw) == 0 {
		return err
	}
	merged := mergeAreas(c.raw)
	c.raw = c.raw[:0]
	now := c.now()
	c.cullLocked(now)
	c.events = append(c.events, FrameRect{At: now, Rects: merged})
	return err
}

// ActiveEvents returns the events younger than FlashDuration.
func (c *FlushCollector) ActiveEvents() []FrameRect {
	if !c.Enabled() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cullLocked(c.now())
	return append([]FrameRect(nil), c.events...)
}

// Enabled reports whether flush regions are being recorded.
func (c *FlushCollector) Enabled() bool { return c.enabled.Load() }

// SetEnabled turns recording on or off.
func (c *FlushCollector) SetEnabled(enabled bool) { c.enabled.Store(enabled) }

// Close stops accepting regions from any plugin.
func (c *FlushCollector) Close() {
	c.reg.release()
}

func (c *FlushCollector) cullLocked(now time.Time) {
	kept := c.events[:0]
	for _, e := range c.events {
		if now.Sub(e.At) < FlashDuration {
			kept = append(kept, e)
		}
	}
	c.events = kept
}

// mergeAreas collapses areas into their bounding box.
func mergeAreas(areas []uiplugin.Area) []uiplugin.Area {
	if len(areas) == 0 {
		return nil
	}
	box := areas[0]
	for _, a := range areas[1:] {
		box = box.Union(a)
	}
	return []uiplugin.Area{box}
}
