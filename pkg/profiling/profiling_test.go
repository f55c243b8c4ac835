package profiling

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRecorderSummary(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rec := NewRecorder(clock.Now)

	build := rec.Root().Child("build ui_1")
	daemon := build.Child("daemon")
	clock.Advance(10 * time.Millisecond)
	daemon.Stop()
	sub := build.Child("subprocess")
	clock.Advance(30 * time.Millisecond)
	sub.Stop()
	build.Stop()
	rec.Root().Child("never stopped")
	clock.Advance(60 * time.Millisecond)

	var buf bytes.Buffer
	rec.WriteSummary(&buf)
	out := buf.String()

	assert.Contains(t, out, "timing: 100ms")
	assert.Contains(t, out, "  build ui_1 40ms (40.0%)")
	assert.Contains(t, out, "    daemon 10ms (10.0%)")
	assert.Contains(t, out, "    subprocess 30ms (30.0%)")
	assert.Contains(t, out, "never stopped (running)")
	assert.Less(t, strings.Index(out, "daemon"), strings.Index(out, "subprocess"))
}

func TestStopIsIdempotent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rec := NewRecorder(clock.Now)
	s := rec.Root().Child("x")
	clock.Advance(time.Millisecond)
	s.Stop()
	clock.Advance(time.Second)
	s.Stop()
	assert.Equal(t, time.Millisecond, s.duration)
}

func TestNilSpansAreNoops(t *testing.T) {
	var s *Span
	assert.Nil(t, s.Child("x"))
	s.Stop()

	span, ctx := Start(context.Background(), "orphan")
	assert.Nil(t, span)
	assert.Equal(t, context.Background(), ctx)

	var rec *Recorder
	assert.Nil(t, rec.Root())
	rec.WriteSummary(&bytes.Buffer{})
}

func TestStartNestsThroughContext(t *testing.T) {
	rec := NewRecorder(nil)
	ctx := WithSpan(context.Background(), rec.Root())

	outer, ctx := Start(ctx, "outer")
	inner, _ := Start(ctx, "inner")
	require.NotNil(t, inner)
	inner.Stop()
	outer.Stop()

	require.Len(t, rec.Root().children, 1)
	require.Len(t, outer.children, 1)
	assert.Equal(t, "inner", outer.children[0].name)
}

func TestCobraProfilerTiming(t *testing.T) {
	var stderr bytes.Buffer
	root := &cobra.Command{Use: "uireload"}
	child := &cobra.Command{
		Use: "build",
		RunE: func(cmd *cobra.Command, args []string) error {
			span, _ := Start(cmd.Context(), "work")
			span.Stop()
			return nil
		},
	}
	root.AddCommand(child)
	NewCobraProfiler().Attach(root)
	root.SetErr(&stderr)
	root.SetOut(&bytes.Buffer{})

	profile := filepath.Join(t.TempDir(), "cpu.pprof")
	root.SetArgs([]string{"build", "--timing", "--cpu-profile", profile})
	require.NoError(t, root.Execute())

	out := stderr.String()
	assert.Contains(t, out, "timing:")
	assert.Contains(t, out, "uireload build")
	assert.Contains(t, out, "work")
	assert.Contains(t, out, "CPU profile written to "+profile)
	_, err := os.Stat(profile)
	assert.NoError(t, err)
}

func TestCobraProfilerDisabled(t *testing.T) {
	var stderr bytes.Buffer
	root := &cobra.Command{Use: "uireload", RunE: func(*cobra.Command, []string) error { return nil }}
	NewCobraProfiler().Attach(root)
	root.SetErr(&stderr)
	root.SetArgs([]string{})
	require.NoError(t, root.Execute())
	assert.Empty(t, stderr.String())
}
