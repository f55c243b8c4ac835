package uiplugin

import (
	"errors"
	"fmt"
	"time"

	"github.com/grovetools/uireload/pkg/capability"
)

// ErrNotExported is returned when an optional symbol is absent from the
// loaded artifact.
var ErrNotExported = errors.New("symbol not exported by plugin")

// Source hands out leases on the published table. capability.Manager
// implements it.
type Source interface {
	Acquire() (*capability.Lease, error)
}

// With runs fn against the currently published plugin, keeping it loaded
// until fn returns.
func With(src Source, fn func(*Plugin) error) error {
	lease, err := src.Acquire()
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(New(lease.Table()))
}

// Plugin calls into one loaded artifact.
type Plugin struct {
	t *capability.Table
}

// New wraps t. The caller keeps t leased while using the Plugin.
func New(t *capability.Table) *Plugin {
	return &Plugin{t: t}
}

// Table returns the underlying capability table.
func (p *Plugin) Table() *capability.Table { return p.t }

// Path returns the artifact path.
func (p *Plugin) Path() string { return p.t.Path() }

// Generation returns the publish generation of the artifact.
func (p *Plugin) Generation() uint64 { return p.t.Generation() }

// Has reports whether the artifact exports sym.
func (p *Plugin) Has(sym string) bool { return p.t.Has(sym) }

func (p *Plugin) call(sym string, args ...uintptr) (uintptr, error) {
	if !p.t.Has(sym) {
		return 0, fmt.Errorf("%w: %s", ErrNotExported, sym)
	}
	return p.t.Call(sym, args...)
}

// RegisterExternalBuffer hands the plugin a host-owned RGB565 framebuffer.
// The memory must stay valid and unmoved until the plugin is replaced.
func (p *Plugin) RegisterExternalBuffer(buf uintptr, sizeBytes uintptr) error {
	_, err := p.call(SymRegisterExternalBuffer, buf, sizeBytes)
	return err
}

// Setup builds the plugin's UI from scratch.
func (p *Plugin) Setup() error {
	_, err := p.call(SymSetup)
	return err
}

// Update runs one UI tick with the elapsed time since the previous one.
func (p *Plugin) Update(elapsed time.Duration) error {
	_, err := p.call(SymUpdate, durationMS(elapsed))
	return err
}

// AdvanceTimer advances the plugin's tick counter without rendering.
func (p *Plugin) AdvanceTimer(elapsed time.Duration) error {
	_, err := p.call(SymAdvanceTimer, durationMS(elapsed))
	return err
}

// Framebuffer returns the address of the plugin's active framebuffer.
func (p *Plugin) Framebuffer() (uintptr, error) {
	return p.call(SymFramebuffer)
}

// DisplaySize returns the display resolution reported by the plugin.
func (p *Plugin) DisplaySize() (width, height uint32, err error) {
	w, err := p.call(SymDisplayWidth)
	if err != nil {
		return 0, 0, err
	}
	h, err := p.call(SymDisplayHeight)
	if err != nil {
		return 0, 0, err
	}
	return uint32(w), uint32(h), nil
}

// RequiredFramebufferSize returns the framebuffer size in bytes. Plugins
// that do not export the query are assumed to render RGB565 at their
// display size.
func (p *Plugin) RequiredFramebufferSize() (uintptr, error) {
	if p.t.Has(SymRequiredFramebufferSize) {
		return p.call(SymRequiredFramebufferSize)
	}
	w, h, err := p.DisplaySize()
	if err != nil {
		return 0, err
	}
	return uintptr(w) * uintptr(h) * 2, nil
}

// RegisterLogCallback installs cb(userData, level, msg) as the plugin's log
// sink.
func (p *Plugin) RegisterLogCallback(cb, userData uintptr) error {
	_, err := p.call(SymRegisterLogCallback, cb, userData)
	return err
}

// RegisterTreeCallback installs cb(userData, nodes, count) as the receiver
// of ExportTree.
func (p *Plugin) RegisterTreeCallback(cb, userData uintptr) error {
	_, err := p.call(SymRegisterTreeCallback, cb, userData)
	return err
}

// ExportTree asks the plugin to send its object tree to the registered tree
// callback. The callback runs before ExportTree returns.
func (p *Plugin) ExportTree() error {
	_, err := p.call(SymExportTree)
	return err
}

// RegisterFlushCallback installs cb(userData, area) as the flush observer.
func (p *Plugin) RegisterFlushCallback(cb, userData uintptr) error {
	_, err := p.call(SymRegisterFlushArea, cb, userData)
	return err
}

// ClearFlushCallback removes the flush observer.
func (p *Plugin) ClearFlushCallback() error {
	_, err := p.call(SymClearFlushArea)
	return err
}

// ObjAtPoint returns the topmost object at display coordinates, or 0.
func (p *Plugin) ObjAtPoint(x, y int32) (uintptr, error) {
	return p.call(SymObjAtPoint, uintptr(x), uintptr(y))
}

// LabelText returns the text of a label object.
func (p *Plugin) LabelText(obj uintptr) (string, error) {
	ptr, err := p.call(SymLabelText, obj)
	if err != nil {
		return "", err
	}
	return GoString(ptr), nil
}

// SetHidden toggles an object's hidden flag.
func (p *Plugin) SetHidden(obj uintptr, hidden bool) error {
	_, err := p.call(SymObjSetShown, obj, boolArg(hidden))
	return err
}

func durationMS(d time.Duration) uintptr {
	if d < 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > int64(^uint32(0)) {
		ms = int64(^uint32(0))
	}
	return uintptr(ms)
}
