package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/uireload/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(line + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestFollowLogMovesToNextDay(t *testing.T) {
	t.Chdir(t.TempDir())

	day1 := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	day2 := day1.Add(2 * time.Minute)
	var mu sync.Mutex
	clock := day1
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}

	first := logging.LogFilePath("reload", day1)
	second := logging.LogFilePath("reload", day2)
	require.NotEqual(t, first, second)
	require.NoError(t, os.MkdirAll(filepath.Dir(first), 0755))
	appendLine(t, first, "already there")

	ctx, cancel := context.WithCancel(context.Background())
	check := make(chan time.Time)
	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() { done <- followLog(ctx, out, "reload", now, check) }()

	require.Eventually(t, func() bool {
		if f, err := os.OpenFile(first, os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			_, _ = f.WriteString("before midnight\n")
			_ = f.Close()
		}
		return strings.Contains(out.String(), "before midnight")
	}, 5*time.Second, 100*time.Millisecond)
	assert.NotContains(t, out.String(), "already there")

	mu.Lock()
	clock = day2
	mu.Unlock()
	appendLine(t, second, "after midnight")
	check <- day2

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "after midnight")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop")
	}
}
