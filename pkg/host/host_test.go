package host_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
	"unsafe"

	"github.com/grovetools/uireload/pkg/capability"
	"github.com/grovetools/uireload/pkg/capability/capabilitytest"
	"github.com/grovetools/uireload/pkg/host"
	"github.com/grovetools/uireload/pkg/rebind"
	"github.com/grovetools/uireload/pkg/uiplugin"
	"github.com/grovetools/uireload/pkg/uiplugin/uiplugintest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dir     string
	opener  *capabilitytest.Opener
	manager *capability.Manager
	cbs     *rebind.Callbacks
	host    *host.Host
	hook    *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opener := capabilitytest.NewOpener()
	m := capability.NewManager(opener, uiplugin.Symbols(), capability.WithLogger(logger.WithField("component", "capability")))
	cbs := rebind.NewCallbacks(rebind.NewRegistry(), 0xc1, 0xc2, 0xc3)
	h := host.New(m, cbs, host.WithLogger(logger.WithField("component", "host")), host.WithLogCapacity(8))
	t.Cleanup(h.Close)
	return &fixture{dir: t.TempDir(), opener: opener, manager: m, cbs: cbs, host: h, hook: hook}
}

func (f *fixture) load(t *testing.T, name string, lib *capabilitytest.Library) {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("elf"), 0644))
	if lib == nil {
		lib = uiplugintest.New(path).Library
	}
	f.opener.Register(lib)
	_, err := f.manager.Load(path)
	require.NoError(t, err)
}

func TestFrameWithoutPlugin(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.host.Frame())
	assert.Zero(t, f.host.Renderer.Frames())
}

func TestFrameRebindsAfterReload(t *testing.T) {
	f := newFixture(t)

	first := uiplugintest.New(filepath.Join(f.dir, "libone.so"))
	f.load(t, "libone.so", first.Library)
	require.NoError(t, f.host.Frame())
	require.NoError(t, f.host.Frame())
	assert.Equal(t, 1, first.Setups())
	assert.Len(t, first.Updates(), 2)
	assert.Len(t, first.LogRegistrations(), 1)
	assert.Len(t, first.FlushRegistrations(), 1)
	assert.Len(t, first.TreeRegistrations(), 1)

	second := uiplugintest.New(filepath.Join(f.dir, "libtwo.so"))
	f.load(t, "libtwo.so", second.Library)
	require.NoError(t, f.host.Frame())
	assert.Equal(t, 1, second.Setups())
	assert.Len(t, second.Updates(), 1)
	assert.Equal(t, f.manager.Generation(), f.host.Renderer.Generation())
	assert.Equal(t, uint64(3), f.host.Renderer.Frames())
}

func TestPluginLogsReachBridge(t *testing.T) {
	f := newFixture(t)
	fake := uiplugintest.New(filepath.Join(f.dir, "libone.so"))
	f.load(t, "libone.so", fake.Library)
	require.NoError(t, f.host.Frame())

	msg := append([]byte("ready"), 0)
	ud := fake.LogRegistrations()[0].UserData
	f.cbs.HandleLog(ud, uintptr(uiplugin.LogWarn), uintptr(unsafe.Pointer(&msg[0])))
	runtime.KeepAlive(msg)

	assert.Equal(t, []string{"[Warn] ready"}, f.host.Logs.TakeLogs())
}

func TestFrameErrorLoggedOnce(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "libbad.so")
	zero := func(...uintptr) uintptr { return 0 }
	bad := capabilitytest.NewLibrary(path, map[string]capabilitytest.Func{
		uiplugin.SymSetup:                  zero,
		uiplugin.SymUpdate:                 zero,
		uiplugin.SymFramebuffer:            zero,
		uiplugin.SymDisplayWidth:           zero,
		uiplugin.SymDisplayHeight:          zero,
		uiplugin.SymRegisterExternalBuffer: zero,
	})
	f.load(t, "libbad.so", bad)

	assert.Error(t, f.host.Frame())
	assert.Error(t, f.host.Frame())

	warnings := 0
	for _, e := range f.hook.AllEntries() {
		if e.Message == "Frame failed" {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
	assert.True(t, f.host.Rebinder().Stale())
}

func TestRefreshTreeWithoutPlugin(t *testing.T) {
	f := newFixture(t)
	_, err := f.host.RefreshTree()
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.load(t, "libone.so", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.host.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool { return f.host.Renderer.Frames() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
