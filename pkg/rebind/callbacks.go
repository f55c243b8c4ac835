package rebind

import "github.com/grovetools/uireload/pkg/uiplugin"

// LogSink receives plugin log lines.
type LogSink interface {
	ReceiveLog(level uiplugin.LogLevel, msg string)
}

// TreeSink receives exported object trees.
type TreeSink interface {
	ReceiveTree(nodes []uiplugin.FlatNode)
}

// FlushSink receives flushed display areas.
type FlushSink interface {
	ReceiveFlush(area uiplugin.Area)
}

// Callbacks holds one native function pointer per callback kind together with
// the registry the pointers dispatch through.
type Callbacks struct {
	Log   uintptr
	Tree  uintptr
	Flush uintptr

	registry *Registry
}

// NewCallbacks pairs function pointers with reg. Tests pass sentinel
// addresses and invoke the Handle methods directly.
func NewCallbacks(reg *Registry, log, tree, flush uintptr) *Callbacks {
	return &Callbacks{Log: log, Tree: tree, Flush: flush, registry: reg}
}

// Registry returns the registry consumers register with.
func (c *Callbacks) Registry() *Registry { return c.registry }

// HandleLog dispatches ui_log_cb_t(user_data, level, msg).
func (c *Callbacks) HandleLog(userData, level, msg uintptr) {
	if msg == 0 {
		return
	}
	v, ok := c.registry.Lookup(Handle(userData))
	if !ok {
		return
	}
	if sink, ok := v.(LogSink); ok {
		sink.ReceiveLog(uiplugin.LogLevel(int32(level)), uiplugin.GoString(msg))
	}
}

// HandleTree dispatches tree_send_cb_t(user_data, nodes, count).
func (c *Callbacks) HandleTree(userData, nodes, count uintptr) {
	if nodes == 0 {
		return
	}
	v, ok := c.registry.Lookup(Handle(userData))
	if !ok {
		return
	}
	if sink, ok := v.(TreeSink); ok {
		sink.ReceiveTree(uiplugin.DecodeFlatNodes(nodes, count))
	}
}

// HandleFlush dispatches flush_area_cb(user_data, area).
func (c *Callbacks) HandleFlush(userData, area uintptr) {
	a, ok := uiplugin.DecodeArea(area)
	if !ok {
		return
	}
	v, ok := c.registry.Lookup(Handle(userData))
	if !ok {
		return
	}
	if sink, ok := v.(FlushSink); ok {
		sink.ReceiveFlush(a)
	}
}
