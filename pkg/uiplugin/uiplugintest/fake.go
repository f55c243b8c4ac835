// Package uiplugintest provides a fake UI plugin exporting the full symbol
// set, for tests that drive consumers without a native artifact.
package uiplugintest

import (
	"sync"

	"github.com/grovetools/uireload/pkg/capability/capabilitytest"
	"github.com/grovetools/uireload/pkg/uiplugin"
)

// Registration is one callback registration seen by the fake.
type Registration struct {
	Callback uintptr
	UserData uintptr
}

// Plugin records what the host asked of it.
type Plugin struct {
	*capabilitytest.Library

	mu       sync.Mutex
	log      []Registration
	tree     []Registration
	flush    []Registration
	buffer   Registration
	setups   int
	updates  []uintptr
	hidden   map[uintptr]bool
	objAt    uintptr
	onExport func()
	onUpdate func()
}

// New returns a fake plugin at path exporting every known symbol.
func New(path string) *Plugin {
	p := &Plugin{hidden: map[uintptr]bool{}}
	p.Library = capabilitytest.NewLibrary(path, map[string]capabilitytest.Func{
		uiplugin.SymSetup: func(...uintptr) uintptr {
			p.mu.Lock()
			p.setups++
			p.mu.Unlock()
			return 0
		},
		uiplugin.SymUpdate: func(args ...uintptr) uintptr {
			p.mu.Lock()
			p.updates = append(p.updates, args[0])
			hook := p.onUpdate
			p.mu.Unlock()
			if hook != nil {
				hook()
			}
			return 0
		},
		uiplugin.SymAdvanceTimer:            func(...uintptr) uintptr { return 0 },
		uiplugin.SymFramebuffer:             func(...uintptr) uintptr { return p.bufferAddr() },
		uiplugin.SymDisplayWidth:            func(...uintptr) uintptr { return uiplugin.ScreenWidth },
		uiplugin.SymDisplayHeight:           func(...uintptr) uintptr { return uiplugin.ScreenHeight },
		uiplugin.SymRequiredFramebufferSize: func(...uintptr) uintptr { return uiplugin.ScreenWidth * uiplugin.ScreenHeight * 2 },
		uiplugin.SymRegisterExternalBuffer: func(args ...uintptr) uintptr {
			p.mu.Lock()
			p.buffer = Registration{Callback: args[0], UserData: args[1]}
			p.mu.Unlock()
			return 0
		},
		uiplugin.SymRegisterLogCallback: func(args ...uintptr) uintptr {
			p.record(&p.log, args)
			return 0
		},
		uiplugin.SymRegisterTreeCallback: func(args ...uintptr) uintptr {
			p.record(&p.tree, args)
			return 0
		},
		uiplugin.SymRegisterFlushArea: func(args ...uintptr) uintptr {
			p.record(&p.flush, args)
			return 0
		},
		uiplugin.SymClearFlushArea: func(...uintptr) uintptr {
			p.mu.Lock()
			p.flush = append(p.flush, Registration{})
			p.mu.Unlock()
			return 0
		},
		uiplugin.SymExportTree: func(...uintptr) uintptr {
			p.mu.Lock()
			hook := p.onExport
			p.mu.Unlock()
			if hook != nil {
				hook()
			}
			return 0
		},
		uiplugin.SymObjAtPoint: func(...uintptr) uintptr {
			p.mu.Lock()
			defer p.mu.Unlock()
			return p.objAt
		},
		uiplugin.SymLabelText: func(...uintptr) uintptr { return 0 },
		uiplugin.SymObjSetShown: func(args ...uintptr) uintptr {
			p.mu.Lock()
			p.hidden[args[0]] = args[1] != 0
			p.mu.Unlock()
			return 0
		},
	})
	return p
}

func (p *Plugin) record(dst *[]Registration, args []uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*dst = append(*dst, Registration{Callback: args[0], UserData: args[1]})
}

func (p *Plugin) bufferAddr() uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.Callback
}

// OnExportTree runs fn whenever the host calls ExportTree.
func (p *Plugin) OnExportTree(fn func()) {
	p.mu.Lock()
	p.onExport = fn
	p.mu.Unlock()
}

// OnUpdate runs fn whenever the host calls Update.
func (p *Plugin) OnUpdate(fn func()) {
	p.mu.Lock()
	p.onUpdate = fn
	p.mu.Unlock()
}

// SetObjAt sets the object ObjAtPoint reports.
func (p *Plugin) SetObjAt(obj uintptr) {
	p.mu.Lock()
	p.objAt = obj
	p.mu.Unlock()
}

// LogRegistrations returns every log callback registration.
func (p *Plugin) LogRegistrations() []Registration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Registration(nil), p.log...)
}

// TreeRegistrations returns every tree callback registration.
func (p *Plugin) TreeRegistrations() []Registration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Registration(nil), p.tree...)
}

// FlushRegistrations returns every flush callback registration. A cleared
// callback is recorded as the zero Registration.
func (p *Plugin) FlushRegistrations() []Registration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Registration(nil), p.flush...)
}

// Buffer returns the registered external framebuffer address and size.
func (p *Plugin) Buffer() (addr, size uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.Callback, p.buffer.UserData
}

// Setups returns how many times Setup ran.
func (p *Plugin) Setups() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setups
}

// Updates returns the elapsed milliseconds passed to each Update.
func (p *Plugin) Updates() []uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uintptr(nil), p.updates...)
}

// Hidden reports the last hidden flag set for obj.
func (p *Plugin) Hidden(obj uintptr) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hidden[obj]
}
