package build

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/uireload/errors"
	"github.com/grovetools/uireload/logging"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Environment understood by the fake build tool.
const (
	envFakeTool   = "UIRELOAD_FAKE_BUILD_TOOL"
	envFakeOutDir = "UIRELOAD_FAKE_BUILD_OUT"
	envFakeExit   = "UIRELOAD_FAKE_BUILD_EXIT"
	envFakeSleep  = "UIRELOAD_FAKE_BUILD_SLEEP"
)

// TestFakeBuildTool is not a real test. The subprocess tests run the test
// binary with this test selected as the build tool.
func TestFakeBuildTool(t *testing.T) {
	if os.Getenv(envFakeTool) != "1" {
		return
	}

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	stem := ""
	dynamic := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--dynamic":
			dynamic = true
		case "--output-name":
			if i+1 < len(args) {
				stem = args[i+1]
				i++
			}
		}
	}

	fmt.Println("compiling ui sources")
	fmt.Fprintln(os.Stderr, "warning: unused variable")

	if d, err := time.ParseDuration(os.Getenv(envFakeSleep)); err == nil {
		time.Sleep(d)
	}
	if code, _ := strconv.Atoi(os.Getenv(envFakeExit)); code != 0 {
		fmt.Fprintln(os.Stderr, "error: build broke")
		os.Exit(code)
	}
	if !dynamic || stem == "" {
		fmt.Fprintln(os.Stderr, "missing flags")
		os.Exit(2)
	}
	if dir := os.Getenv(envFakeOutDir); dir != "" {
		_ = os.WriteFile(filepath.Join(dir, "lib"+stem+".so"), []byte("elf"), 0644)
	}
	os.Exit(0)
}

func fakeTool() []string {
	return []string{os.Args[0], "-test.run=^TestFakeBuildTool$", "--"}
}

func nullLogger() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return logger.WithField("component", "build"), hook
}

// fakeDaemon serves the build protocol on a loopback port.
type fakeDaemon struct {
	ln       net.Listener
	mu       sync.Mutex
	requests []Request
	reply    func(Request) []byte
}

func startFakeDaemon(t *testing.T, reply func(Request) []byte) *fakeDaemon {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d := &fakeDaemon{ln: ln, reply: reply}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go d.handle(conn)
		}
	}()
	return d
}

func (d *fakeDaemon) handle(conn net.Conn) {
	defer conn.Close()
	body, err := io.ReadAll(conn)
	if err != nil {
		return
	}
	var req Request
	_ = json.Unmarshal(body, &req)
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()
	_, _ = conn.Write(d.reply(req))
}

func (d *fakeDaemon) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Request(nil), d.requests...)
}

func jsonReply(resp Response) func(Request) []byte {
	return func(Request) []byte {
		data, _ := json.Marshal(resp)
		return data
	}
}

// closedAddr returns a loopback address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestDaemonBuilderProtocol(t *testing.T) {
	d := startFakeDaemon(t, jsonReply(Response{Success: true}))
	logger, _ := nullLogger()
	b := NewDaemonBuilder(d.ln.Addr().String(), "desktop", time.Second, logger)

	require.NoError(t, b.Build(context.Background(), "stratum-ui_reload_20250101_000000"))

	reqs := d.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, Request{Dynamic: true, Target: "desktop", OutputName: "stratum-ui_reload_20250101_000000"}, reqs[0])
}

func TestDaemonBuilderReportedFailure(t *testing.T) {
	d := startFakeDaemon(t, jsonReply(Response{Success: false, Error: "compile error"}))
	logger, _ := nullLogger()
	b := NewDaemonBuilder(d.ln.Addr().String(), "desktop", time.Second, logger)

	err := b.Build(context.Background(), "ui_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeBuildFailure))
	assert.Contains(t, err.Error(), "compile error")
}

func TestDaemonBuilderUnavailable(t *testing.T) {
	logger, _ := nullLogger()

	tests := []struct {
		name string
		addr func(t *testing.T) string
	}{
		{"connection refused", closedAddr},
		{"garbage reply", func(t *testing.T) string {
			return startFakeDaemon(t, func(Request) []byte { return []byte("not json") }).ln.Addr().String()
		}},
		{"empty reply", func(t *testing.T) string {
			return startFakeDaemon(t, func(Request) []byte { return nil }).ln.Addr().String()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewDaemonBuilder(tt.addr(t), "desktop", time.Second, logger)
			err := b.Build(context.Background(), "ui_1")
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeDaemonUnavailable), "got %v", err)
		})
	}
}

func TestSubprocessBuilderSuccess(t *testing.T) {
	out := t.TempDir()
	t.Setenv(envFakeTool, "1")
	t.Setenv(envFakeOutDir, out)

	logger, hook := nullLogger()
	b := NewSubprocessBuilder(fakeTool(), t.TempDir(), nil, logger)

	var streamed bytes.Buffer
	ctx := logging.WithBuildOutput(context.Background(), &streamed)
	require.NoError(t, b.Build(ctx, "ui_reload_20250101_000000"))

	assert.FileExists(t, filepath.Join(out, "libui_reload_20250101_000000.so"))
	assert.Contains(t, streamed.String(), "compiling ui sources")

	var sawStdout, sawStderr bool
	for _, e := range hook.AllEntries() {
		if e.Message == "compiling ui sources" && e.Data["stream"] == "stdout" {
			sawStdout = true
		}
		if e.Message == "warning: unused variable" && e.Level == logrus.WarnLevel {
			sawStderr = true
		}
	}
	assert.True(t, sawStdout, "stdout should be logged line by line")
	assert.True(t, sawStderr, "stderr should be logged at warn level")
}

func TestSubprocessBuilderFailure(t *testing.T) {
	t.Setenv(envFakeTool, "1")
	t.Setenv(envFakeExit, "3")

	logger, _ := nullLogger()
	b := NewSubprocessBuilder(fakeTool(), "", nil, logger)

	err := b.Build(context.Background(), "ui_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeBuildFailure))
	code, ok := errors.Detail(err, "exitCode")
	require.True(t, ok)
	assert.Equal(t, 3, code)
	tail, _ := errors.Detail(err, "stderr")
	assert.Contains(t, tail, "error: build broke")
}

func TestSubprocessBuilderLaunchError(t *testing.T) {
	logger, _ := nullLogger()
	b := NewSubprocessBuilder([]string{filepath.Join(t.TempDir(), "no-such-tool")}, "", nil, logger)

	err := b.Build(context.Background(), "ui_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeBuildLaunch))
}

func TestSubprocessBuilderRejectsBadStem(t *testing.T) {
	logger, _ := nullLogger()
	b := NewSubprocessBuilder(fakeTool(), "", nil, logger)

	err := b.Build(context.Background(), "../../etc/passwd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

// Scenario B: the daemon refuses the connection, the subprocess runs with
// the same stem and the artifact appears where expected.
func TestOrchestratorFallsBackToSubprocess(t *testing.T) {
	out := t.TempDir()
	t.Setenv(envFakeTool, "1")
	t.Setenv(envFakeOutDir, out)

	logger, _ := nullLogger()
	o := NewOrchestrator(
		NewSubprocessBuilder(fakeTool(), "", nil, logger),
		WithDaemon(NewDaemonBuilder(closedAddr(t), "desktop", 200*time.Millisecond, logger)),
		WithLogger(logger),
	)

	stem := "stratum-ui_reload_20250101_120000"
	strategy, err := o.RunBuild(context.Background(), stem)
	require.NoError(t, err)
	assert.Equal(t, StrategySubprocess, strategy)
	assert.FileExists(t, filepath.Join(out, "lib"+stem+".so"))
}

func TestOrchestratorPrefersDaemon(t *testing.T) {
	d := startFakeDaemon(t, jsonReply(Response{Success: true}))
	logger, _ := nullLogger()
	sub := &recordingBuilder{}
	o := NewOrchestrator(sub,
		WithDaemon(NewDaemonBuilder(d.ln.Addr().String(), "desktop", time.Second, logger)),
		WithLogger(logger))

	strategy, err := o.RunBuild(context.Background(), "ui_1")
	require.NoError(t, err)
	assert.Equal(t, StrategyDaemon, strategy)
	assert.Empty(t, sub.stems)

	// Every call retries the daemon.
	_, err = o.RunBuild(context.Background(), "ui_2")
	require.NoError(t, err)
	assert.Len(t, d.Requests(), 2)
}

func TestOrchestratorDaemonFailureDoesNotFallBack(t *testing.T) {
	d := startFakeDaemon(t, jsonReply(Response{Success: false}))
	logger, _ := nullLogger()
	sub := &recordingBuilder{}
	o := NewOrchestrator(sub,
		WithDaemon(NewDaemonBuilder(d.ln.Addr().String(), "desktop", time.Second, logger)),
		WithLogger(logger))

	strategy, err := o.RunBuild(context.Background(), "ui_1")
	require.Error(t, err)
	assert.Equal(t, StrategyDaemon, strategy)
	assert.True(t, errors.Is(err, errors.ErrCodeBuildFailure))
	assert.Empty(t, sub.stems)
}

func TestOrchestratorTimeout(t *testing.T) {
	t.Setenv(envFakeTool, "1")
	t.Setenv(envFakeSleep, "5s")

	logger, _ := nullLogger()
	o := NewOrchestrator(NewSubprocessBuilder(fakeTool(), "", nil, logger),
		WithTimeout(200*time.Millisecond), WithLogger(logger))

	start := time.Now()
	_, err := o.RunBuild(context.Background(), "ui_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeBuildTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

// The build tool forks a child that keeps stdout open; the timeout must still
// cut the build short.
func TestOrchestratorTimeoutKillsForkedTool(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	logger, _ := nullLogger()
	tool := []string{"sh", "-c", "echo compiling; sleep 4 & sleep 4", "build.sh"}
	o := NewOrchestrator(NewSubprocessBuilder(tool, "", nil, logger),
		WithTimeout(200*time.Millisecond), WithLogger(logger))

	start := time.Now()
	_, err := o.RunBuild(context.Background(), "ui_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeBuildTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestOrchestratorRejectsBadStemBeforeDaemon(t *testing.T) {
	d := startFakeDaemon(t, jsonReply(Response{Success: true}))
	logger, _ := nullLogger()
	sub := &recordingBuilder{}
	o := NewOrchestrator(sub,
		WithDaemon(NewDaemonBuilder(d.ln.Addr().String(), "desktop", time.Second, logger)),
		WithLogger(logger))

	for _, stem := range []string{"../x", "", "ui;rm"} {
		_, err := o.RunBuild(context.Background(), stem)
		require.Error(t, err, stem)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "got %v", err)
	}
	assert.Empty(t, d.Requests())
	assert.Empty(t, sub.stems)
}

func TestOrchestratorWithoutDaemon(t *testing.T) {
	logger, _ := nullLogger()
	sub := &recordingBuilder{}
	o := NewOrchestrator(sub, WithLogger(logger))

	strategy, err := o.RunBuild(context.Background(), "ui_1")
	require.NoError(t, err)
	assert.Equal(t, StrategySubprocess, strategy)
	assert.Equal(t, []string{"ui_1"}, sub.stems)
}

type recordingBuilder struct {
	mu    sync.Mutex
	stems []string
	err   error
}

func (r *recordingBuilder) Build(_ context.Context, stem string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stems = append(r.stems, stem)
	return r.err
}

func TestLineLogger(t *testing.T) {
	logger, hook := nullLogger()
	l := newLineLogger(logger, logrus.InfoLevel)

	_, _ = l.Write([]byte("first li"))
	_, _ = l.Write([]byte("ne\nsecond\r\n\nthird"))
	l.Flush()

	var msgs []string
	for _, e := range hook.AllEntries() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"first line", "second", "third"}, msgs)
}
