package consumer

import (
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/grovetools/uireload/pkg/rebind"
	"github.com/grovetools/uireload/pkg/uiplugin"
)

// Renderer owns the host framebuffer the plugin draws into. Every reload
// hands the buffer to the new plugin and rebuilds its UI; every frame drives
// the plugin's timer.
type Renderer struct {
	flush *FlushCollector
	now   func() time.Time

	mu         sync.Mutex
	fb         []uint16
	pinner     runtime.Pinner
	width      int
	height     int
	boundGen   uint64
	lastUpdate time.Time
	frames     uint64
	frameTimes []time.Time
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithRendererClock overrides time.Now.
func WithRendererClock(now func() time.Time) RendererOption {
	return func(r *Renderer) { r.now = now }
}

// NewRenderer returns a renderer that scopes setup and frames in flush. flush
// may be nil.
func NewRenderer(flush *FlushCollector, opts ...RendererOption) *Renderer {
	r := &Renderer{flush: flush, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements rebind.Consumer.
func (r *Renderer) Name() string { return "renderer" }

// Bind implements rebind.Consumer. Add the flush collector to the rebinder
// before the renderer so setup's redraws are recorded.
func (r *Renderer) Bind(p *uiplugin.Plugin, _ *rebind.Callbacks) error {
	size, err := p.RequiredFramebufferSize()
	if err != nil {
		return err
	}
	w, h, err := p.DisplaySize()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pixels := int(size / 2)
	if pixels == 0 {
		return fmt.Errorf("plugin %s reported an empty framebuffer", p.Path())
	}
	if len(r.fb) < pixels {
		r.pinner.Unpin()
		r.fb = make([]uint16, pixels)
		r.pinner.Pin(&r.fb[0])
	}
	clear(r.fb)
	r.width, r.height = int(w), int(h)

	buf := uintptr(unsafe.Pointer(&r.fb[0]))
	if err := p.RegisterExternalBuffer(buf, uintptr(len(r.fb))*2); err != nil {
		return err
	}
	if err := r.scope(p.Setup); err != nil {
		return err
	}
	r.boundGen = p.Generation()
	r.lastUpdate = r.now()
	return nil
}

// Frame runs one plugin update with the time elapsed since the previous one.
// It refuses to drive a plugin the renderer has not set up.
func (r *Renderer) Frame(p *uiplugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.boundGen == 0 || p.Generation() != r.boundGen {
		return fmt.Errorf("renderer not bound to generation %d", p.Generation())
	}

	now := r.now()
	elapsed := now.Sub(r.lastUpdate)
	r.lastUpdate = now
	if err := r.scope(func() error { return p.Update(elapsed) }); err != nil {
		return err
	}

	r.frames++
	r.frameTimes = append(r.frameTimes, now)
	cutoff := now.Add(-time.Second)
	i := 0
	for i < len(r.frameTimes) && !r.frameTimes[i].After(cutoff) {
		i++
	}
	r.frameTimes = r.frameTimes[i:]
	return nil
}

func (r *Renderer) scope(fn func() error) error {
	if r.flush == nil {
		return fn()
	}
	return r.flush.Scope(fn)
}

// Snapshot copies the framebuffer.
func (r *Renderer) Snapshot() (pixels []uint16, width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := min(len(r.fb), r.width*r.height)
	return append([]uint16(nil), r.fb[:n]...), r.width, r.height
}

// Frames returns the number of frames rendered.
func (r *Renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// FPS returns the frames rendered during the last second.
func (r *Renderer) FPS() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frameTimes)
}

// Generation returns the plugin generation the renderer last set up.
func (r *Renderer) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.boundGen
}

// Close releases the framebuffer. The plugin must not draw afterwards.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pinner.Unpin()
	r.fb = nil
	r.boundGen = 0
}

// RGB returns the 8-bit channels of an RGB565 pixel.
func RGB(px uint16) (red, green, blue uint8) {
	r5 := uint8(px >> 11 & 0x1f)
	g6 := uint8(px >> 5 & 0x3f)
	b5 := uint8(px & 0x1f)
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}
