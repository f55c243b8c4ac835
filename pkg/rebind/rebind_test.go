package rebind_test

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"unsafe"

	"github.com/grovetools/uireload/pkg/capability"
	"github.com/grovetools/uireload/pkg/capability/capabilitytest"
	"github.com/grovetools/uireload/pkg/rebind"
	"github.com/grovetools/uireload/pkg/uiplugin"
	"github.com/grovetools/uireload/pkg/uiplugin/uiplugintest"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	dir     string
	opener  *capabilitytest.Opener
	manager *capability.Manager
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger, _ := test.NewNullLogger()
	opener := capabilitytest.NewOpener()
	return &env{
		dir:     t.TempDir(),
		opener:  opener,
		manager: capability.NewManager(opener, uiplugin.Symbols(), capability.WithLogger(logger.WithField("component", "capability"))),
	}
}

func (e *env) publish(t *testing.T, name string) *uiplugintest.Plugin {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("elf"), 0644))
	fake := uiplugintest.New(path)
	e.opener.Register(fake.Library)
	_, err := e.manager.Load(path)
	require.NoError(t, err)
	return fake
}

type countingConsumer struct {
	name     string
	failures int
	bound    []uint64
}

func (c *countingConsumer) Name() string { return c.name }

func (c *countingConsumer) Bind(p *uiplugin.Plugin, cbs *rebind.Callbacks) error {
	if c.failures > 0 {
		c.failures--
		return fmt.Errorf("not ready")
	}
	c.bound = append(c.bound, p.Generation())
	return p.RegisterLogCallback(cbs.Log, 1)
}

func newRebinder(e *env) *rebind.Rebinder {
	logger, _ := test.NewNullLogger()
	cbs := rebind.NewCallbacks(rebind.NewRegistry(), 0xa1, 0xa2, 0xa3)
	return rebind.New(e.manager, cbs, rebind.WithLogger(logger.WithField("component", "rebind")))
}

func TestPollBeforeFirstLoad(t *testing.T) {
	e := newEnv(t)
	r := newRebinder(e)
	c := &countingConsumer{name: "logs"}
	r.Add(c)

	n, err := r.Poll()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, c.bound)
}

func TestPollRebindsOncePerGeneration(t *testing.T) {
	e := newEnv(t)
	r := newRebinder(e)
	a := &countingConsumer{name: "a"}
	b := &countingConsumer{name: "b"}
	r.Add(a)
	r.Add(b)

	first := e.publish(t, "libone.so")
	n, err := r.Poll()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, r.Stale())

	n, err = r.Poll()
	require.NoError(t, err)
	assert.Zero(t, n, "no swap, nothing to rebind")

	second := e.publish(t, "libtwo.so")
	assert.True(t, r.Stale())
	n, err = r.Poll()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []uint64{1, 2}, a.bound)
	assert.Equal(t, []uint64{1, 2}, b.bound)
	assert.Len(t, first.LogRegistrations(), 2)
	assert.Len(t, second.LogRegistrations(), 2)
	assert.Equal(t, uintptr(0xa1), second.LogRegistrations()[0].Callback)
}

func TestPollSkipsMissedGenerations(t *testing.T) {
	e := newEnv(t)
	r := newRebinder(e)
	c := &countingConsumer{name: "tree"}
	r.Add(c)

	e.publish(t, "libone.so")
	e.publish(t, "libtwo.so")
	e.publish(t, "libthree.so")

	n, err := r.Poll()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uint64{3}, c.bound)
}

func TestFailedBindIsRetried(t *testing.T) {
	e := newEnv(t)
	r := newRebinder(e)
	flaky := &countingConsumer{name: "flaky", failures: 1}
	steady := &countingConsumer{name: "steady"}
	r.Add(flaky)
	r.Add(steady)

	e.publish(t, "libone.so")
	n, err := r.Poll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flaky")
	assert.Equal(t, 1, n)
	assert.True(t, r.Stale())

	n, err = r.Poll()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uint64{1}, flaky.bound)
	assert.Equal(t, []uint64{1}, steady.bound)
}

func TestAddAfterLoadBindsOnNextPoll(t *testing.T) {
	e := newEnv(t)
	r := newRebinder(e)
	e.publish(t, "libone.so")

	c := &countingConsumer{name: "late"}
	r.Add(c)
	n, err := r.Poll()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uint64{1}, c.bound)
}

func TestRegistry(t *testing.T) {
	reg := rebind.NewRegistry()
	h1 := reg.Register("one")
	h2 := reg.Register("two")
	assert.NotZero(t, h1)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, reg.Len())

	v, ok := reg.Lookup(h2)
	require.True(t, ok)
	assert.Equal(t, "two", v)

	_, ok = reg.Lookup(0)
	assert.False(t, ok)

	reg.Unregister(h1)
	_, ok = reg.Lookup(h1)
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())
}

type sink struct {
	logs  []string
	trees [][]uiplugin.FlatNode
	areas []uiplugin.Area
}

func (s *sink) ReceiveLog(level uiplugin.LogLevel, msg string) {
	s.logs = append(s.logs, level.String()+":"+msg)
}

func (s *sink) ReceiveTree(nodes []uiplugin.FlatNode) {
	s.trees = append(s.trees, nodes)
}

func (s *sink) ReceiveFlush(area uiplugin.Area) {
	s.areas = append(s.areas, area)
}

func TestCallbacksDispatch(t *testing.T) {
	reg := rebind.NewRegistry()
	cbs := rebind.NewCallbacks(reg, 1, 2, 3)
	s := &sink{}
	h := uintptr(reg.Register(s))

	msg := append([]byte("button pressed"), 0)
	cbs.HandleLog(h, uintptr(uiplugin.LogWarn), uintptr(unsafe.Pointer(&msg[0])))
	cbs.HandleLog(0, uintptr(uiplugin.LogWarn), uintptr(unsafe.Pointer(&msg[0])))
	cbs.HandleLog(h, uintptr(uiplugin.LogWarn), 0)
	runtime.KeepAlive(msg)
	assert.Equal(t, []string{"Warn:button pressed"}, s.logs)

	area := uiplugin.Area{X1: 1, Y1: 2, X2: 3, Y2: 4}
	cbs.HandleFlush(h, uintptr(unsafe.Pointer(&area)))
	cbs.HandleFlush(h, 0)
	cbs.HandleFlush(999, uintptr(unsafe.Pointer(&area)))
	runtime.KeepAlive(&area)
	assert.Equal(t, []uiplugin.Area{area}, s.areas)

	cbs.HandleTree(h, 0, 3)
	assert.Empty(t, s.trees)

	reg.Unregister(rebind.Handle(h))
	cbs.HandleFlush(h, uintptr(unsafe.Pointer(&area)))
	runtime.KeepAlive(&area)
	assert.Len(t, s.areas, 1, "unregistered handles are ignored")
}
