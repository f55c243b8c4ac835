package consumer_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"
	"unsafe"

	"github.com/grovetools/uireload/pkg/capability"
	"github.com/grovetools/uireload/pkg/capability/capabilitytest"
	"github.com/grovetools/uireload/pkg/consumer"
	"github.com/grovetools/uireload/pkg/rebind"
	"github.com/grovetools/uireload/pkg/uiplugin"
	"github.com/grovetools/uireload/pkg/uiplugin/uiplugintest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type host struct {
	dir      string
	opener   *capabilitytest.Opener
	manager  *capability.Manager
	cbs      *rebind.Callbacks
	rebinder *rebind.Rebinder
}

func newHost(t *testing.T) *host {
	t.Helper()
	logger, _ := test.NewNullLogger()
	opener := capabilitytest.NewOpener()
	m := capability.NewManager(opener, uiplugin.Symbols(), capability.WithLogger(logger.WithField("component", "capability")))
	cbs := rebind.NewCallbacks(rebind.NewRegistry(), 0xc1, 0xc2, 0xc3)
	return &host{
		dir:      t.TempDir(),
		opener:   opener,
		manager:  m,
		cbs:      cbs,
		rebinder: rebind.New(m, cbs, rebind.WithLogger(logger.WithField("component", "rebind"))),
	}
}

func (h *host) reload(t *testing.T, name string) *uiplugintest.Plugin {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("elf"), 0644))
	fake := uiplugintest.New(path)
	h.opener.Register(fake.Library)
	_, err := h.manager.Load(path)
	require.NoError(t, err)
	_, err = h.rebinder.Poll()
	require.NoError(t, err)
	return fake
}

func (h *host) with(t *testing.T, fn func(p *uiplugin.Plugin) error) {
	t.Helper()
	require.NoError(t, uiplugin.With(h.manager, fn))
}

func sendLog(h *host, ud uintptr, level uiplugin.LogLevel, msg string) {
	b := append([]byte(msg), 0)
	h.cbs.HandleLog(ud, uintptr(level), uintptr(unsafe.Pointer(&b[0])))
	runtime.KeepAlive(b)
}

func sendFlush(h *host, ud uintptr, a uiplugin.Area) {
	h.cbs.HandleFlush(ud, uintptr(unsafe.Pointer(&a)))
	runtime.KeepAlive(&a)
}

func TestLogBridgeSurvivesReload(t *testing.T) {
	h := newHost(t)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	bridge := consumer.NewLogBridge(10, consumer.WithLogBridgeLogger(logger.WithField("component", "plugin")))
	h.rebinder.Add(bridge)

	first := h.reload(t, "libone.so")
	regs := first.LogRegistrations()
	require.Len(t, regs, 1)
	assert.Equal(t, uintptr(0xc1), regs[0].Callback)
	sendLog(h, regs[0].UserData, uiplugin.LogInfo, "screen ready")

	second := h.reload(t, "libtwo.so")
	regs2 := second.LogRegistrations()
	require.Len(t, regs2, 1)
	assert.Equal(t, regs[0].UserData, regs2[0].UserData, "the handle is stable across reloads")
	sendLog(h, regs2[0].UserData, uiplugin.LogError, "button missing")

	assert.Equal(t, []string{"[Info] screen ready", "[Error] button missing"}, bridge.TakeLogs())
	assert.Empty(t, bridge.TakeLogs())

	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "button missing", hook.LastEntry().Message)
}

func TestLogBridgeCapacity(t *testing.T) {
	logger, _ := test.NewNullLogger()
	bridge := consumer.NewLogBridge(3, consumer.WithLogBridgeLogger(logger.WithField("component", "plugin")))
	for i := 0; i < 5; i++ {
		bridge.ReceiveLog(uiplugin.LogDebug, strconv.Itoa(i))
	}
	assert.Equal(t, 3, bridge.Len())
	assert.Equal(t, []string{"[Debug] 2", "[Debug] 3", "[Debug] 4"}, bridge.TakeLogs())
}

func TestLogBridgeClose(t *testing.T) {
	h := newHost(t)
	logger, _ := test.NewNullLogger()
	bridge := consumer.NewLogBridge(0, consumer.WithLogBridgeLogger(logger.WithField("component", "plugin")))
	h.rebinder.Add(bridge)
	fake := h.reload(t, "libone.so")

	bridge.Close()
	sendLog(h, fake.LogRegistrations()[0].UserData, uiplugin.LogInfo, "late")
	assert.Zero(t, bridge.Len())
}

func TestBuildTree(t *testing.T) {
	flat := []uiplugin.FlatNode{
		{Ptr: 1, ClassName: "lv_screen", W: 320, H: 240},
		{Ptr: 2, ParentPtr: 1, ClassName: "lv_obj", X: 10, Y: 10, W: 100, H: 50},
		{Ptr: 3, ParentPtr: 2, ClassName: "lv_label", X: 12, Y: 12, W: 20, H: 10},
		{Ptr: 4, ParentPtr: 1, ClassName: "lv_button", Hidden: true},
		{Ptr: 5, ParentPtr: 99, ClassName: "orphan"},
	}
	root := consumer.BuildTree(flat)
	require.NotNil(t, root)
	assert.Equal(t, "lv_screen", root.ClassName)
	require.Len(t, root.Children, 2)
	assert.Equal(t, uintptr(2), root.Children[0].Ptr)
	assert.Equal(t, uintptr(4), root.Children[1].Ptr)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, "lv_label", root.Children[0].Children[0].ClassName)

	var visited []uintptr
	root.Walk(func(n *consumer.TreeNode, _ int) { visited = append(visited, n.Ptr) })
	assert.Equal(t, []uintptr{1, 2, 3, 4}, visited)

	assert.True(t, root.Children[0].Contains(50, 30))
	assert.False(t, root.Children[0].Contains(200, 30))

	assert.Nil(t, consumer.BuildTree(nil))
	assert.Nil(t, consumer.BuildTree([]uiplugin.FlatNode{{Ptr: 1, ParentPtr: 2}}))
}

func TestBuildTreeIgnoresCycles(t *testing.T) {
	flat := []uiplugin.FlatNode{
		{Ptr: 1},
		{Ptr: 2, ParentPtr: 1},
		{Ptr: 1, ParentPtr: 2},
	}
	root := consumer.BuildTree(flat)
	require.NotNil(t, root)
	require.Len(t, root.Children, 1)
	assert.Empty(t, root.Children[0].Children)
}

func TestTreeCollectorRefresh(t *testing.T) {
	h := newHost(t)
	tree := consumer.NewTreeCollector()
	h.rebinder.Add(tree)
	fake := h.reload(t, "libone.so")

	screen := append([]byte("lv_screen"), 0)
	type rawNode struct {
		Ptr, ParentPtr, ClassName uintptr
		X, Y, W, H                int16
		Hidden                    bool
		DebugID                   uintptr
	}
	nodes := []rawNode{
		{Ptr: 0x10, ClassName: uintptr(unsafe.Pointer(&screen[0])), W: 320, H: 240},
		{Ptr: 0x20, ParentPtr: 0x10, W: 5, H: 5},
	}
	ud := fake.TreeRegistrations()[0].UserData
	fake.OnExportTree(func() {
		h.cbs.HandleTree(ud, uintptr(unsafe.Pointer(&nodes[0])), uintptr(len(nodes)))
	})
	fake.SetObjAt(0x20)

	h.with(t, func(p *uiplugin.Plugin) error {
		root, err := tree.Refresh(p)
		require.NoError(t, err)
		require.NotNil(t, root)
		assert.Equal(t, "lv_screen", root.ClassName)
		require.Len(t, root.Children, 1)
		assert.Equal(t, "<null>", root.Children[0].ClassName)

		ptr, ok, err := tree.ObjectAt(p, 2, 2)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uintptr(0x20), ptr)
		return nil
	})
	runtime.KeepAlive(screen)
	runtime.KeepAlive(nodes)

	assert.NotNil(t, tree.Find(0x20))
	assert.Nil(t, tree.Find(0x99))

	h.reload(t, "libtwo.so")
	assert.Nil(t, tree.Root(), "objects of the old plugin are forgotten")
	_, ok := tree.Selected()
	assert.False(t, ok)
}

func TestFlushCollectorScope(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	fc := consumer.NewFlushCollector(true, consumer.WithClock(clock))

	require.NoError(t, fc.Scope(func() error {
		fc.ReceiveFlush(uiplugin.Area{X1: 10, Y1: 10, X2: 20, Y2: 20})
		fc.ReceiveFlush(uiplugin.Area{X1: 0, Y1: 15, X2: 12, Y2: 40})
		return nil
	}))
	require.NoError(t, fc.Scope(func() error { return nil }))

	events := fc.ActiveEvents()
	require.Len(t, events, 1, "empty scopes produce no event")
	assert.Equal(t, []uiplugin.Area{{X1: 0, Y1: 10, X2: 20, Y2: 40}}, events[0].Rects)

	now = now.Add(consumer.FlashDuration - time.Millisecond)
	assert.Len(t, fc.ActiveEvents(), 1)
	now = now.Add(time.Millisecond)
	assert.Empty(t, fc.ActiveEvents())
}

func TestFlushCollectorDisabled(t *testing.T) {
	fc := consumer.NewFlushCollector(false)
	require.NoError(t, fc.Scope(func() error {
		fc.ReceiveFlush(uiplugin.Area{X2: 5, Y2: 5})
		return nil
	}))
	assert.Empty(t, fc.ActiveEvents())

	fc.SetEnabled(true)
	assert.True(t, fc.Enabled())
	assert.Empty(t, fc.ActiveEvents())
}

func TestRendererDrivesPluginAcrossReloads(t *testing.T) {
	h := newHost(t)
	now := time.Unix(2000, 0)
	clock := func() time.Time { return now }

	flush := consumer.NewFlushCollector(true, consumer.WithClock(clock))
	renderer := consumer.NewRenderer(flush, consumer.WithRendererClock(clock))
	h.rebinder.Add(flush)
	h.rebinder.Add(renderer)
	defer renderer.Close()

	first := h.reload(t, "libone.so")
	assert.Equal(t, 1, first.Setups())
	addr, size := first.Buffer()
	assert.NotZero(t, addr)
	assert.Equal(t, uintptr(uiplugin.ScreenWidth*uiplugin.ScreenHeight*2), size)
	assert.Equal(t, uint64(1), renderer.Generation())

	ud := first.FlushRegistrations()[0].UserData
	first.OnUpdate(func() { sendFlush(h, ud, uiplugin.Area{X1: 1, Y1: 1, X2: 9, Y2: 9}) })

	now = now.Add(16 * time.Millisecond)
	h.with(t, renderer.Frame)
	now = now.Add(20 * time.Millisecond)
	h.with(t, renderer.Frame)
	assert.Equal(t, []uintptr{16, 20}, first.Updates())
	assert.Equal(t, uint64(2), renderer.Frames())
	assert.Equal(t, 2, renderer.FPS())
	assert.Len(t, flush.ActiveEvents(), 2)

	second := h.reload(t, "libtwo.so")
	assert.Equal(t, 1, second.Setups())
	addr2, _ := second.Buffer()
	assert.Equal(t, addr, addr2, "the framebuffer is reused")

	now = now.Add(5 * time.Millisecond)
	h.with(t, renderer.Frame)
	assert.Equal(t, []uintptr{5}, second.Updates())

	pixels, w, hgt := renderer.Snapshot()
	assert.Equal(t, uiplugin.ScreenWidth, w)
	assert.Equal(t, uiplugin.ScreenHeight, hgt)
	assert.Len(t, pixels, w*hgt)
}

func TestRendererRefusesUnboundPlugin(t *testing.T) {
	h := newHost(t)
	renderer := consumer.NewRenderer(nil)
	path := filepath.Join(h.dir, "libone.so")
	require.NoError(t, os.WriteFile(path, []byte("elf"), 0644))
	h.opener.Register(uiplugintest.New(path).Library)
	_, err := h.manager.Load(path)
	require.NoError(t, err)

	err = uiplugin.With(h.manager, renderer.Frame)
	require.Error(t, err)
}

func TestRGB(t *testing.T) {
	r, g, b := consumer.RGB(0xffff)
	assert.Equal(t, [3]uint8{255, 255, 255}, [3]uint8{r, g, b})
	r, g, b = consumer.RGB(0xf800)
	assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{r, g, b})
	r, g, b = consumer.RGB(0x07e0)
	assert.Equal(t, [3]uint8{0, 255, 0}, [3]uint8{r, g, b})
	r, g, b = consumer.RGB(0)
	assert.Equal(t, [3]uint8{0, 0, 0}, [3]uint8{r, g, b})
}
