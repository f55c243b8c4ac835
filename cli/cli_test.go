package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/uireload/config"
	"github.com/grovetools/uireload/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardFlags(t *testing.T) {
	cmd := NewStandardCommand("uireload", "hot reload")
	cmd.RunE = func(*cobra.Command, []string) error { return nil }
	cmd.SetArgs([]string{"-v", "--json", "-c", "/tmp/x.yml"})
	require.NoError(t, cmd.Execute())

	opts := GetOptions(cmd)
	assert.True(t, opts.Verbose)
	assert.True(t, opts.JSONOutput)
	assert.Equal(t, "/tmp/x.yml", opts.ConfigFile)
}

func TestLoadConfigFromFlag(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	path := filepath.Join(dir, "uireload.yml")
	require.NoError(t, os.WriteFile(path, []byte("plugin:\n  name: demo-ui\n"), 0644))

	var cfg *config.Config
	cmd := NewStandardCommand("uireload", "hot reload")
	cmd.RunE = func(c *cobra.Command, _ []string) error {
		var err error
		cfg, err = LoadConfig(c)
		return err
	}
	cmd.SetArgs([]string{"--config", path})
	require.NoError(t, cmd.Execute())
	require.NotNil(t, cfg)
	assert.Equal(t, "demo-ui", cfg.Plugin.Name)
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five", 9)
	assert.Equal(t, []string{"one two", "three", "four five"}, lines)
	assert.Equal(t, []string{"short", ""}, wrapText("short\n", 20))
}

func TestSplitExamples(t *testing.T) {
	desc, ex := splitExamples("Watch sources.\n\nExamples:\n  uireload watch --tui")
	assert.Equal(t, "Watch sources.", desc)
	assert.Equal(t, "uireload watch --tui", ex)

	desc, ex = splitExamples("Only text")
	assert.Equal(t, "Only text", desc)
	assert.Empty(t, ex)
}

func TestStyledHelp(t *testing.T) {
	root := NewStandardCommand("uireload", "Hot reload for native UI plugins")
	sub := &cobra.Command{Use: "watch", Short: "Watch and rebuild", RunE: func(*cobra.Command, []string) error { return nil }}
	sub.Flags().Bool("tui", false, "Show the status view")
	root.AddCommand(sub)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"watch", "--help"})
	require.NoError(t, root.Execute())

	out := buf.String()
	assert.Contains(t, out, "UIRELOAD WATCH")
	assert.Contains(t, out, "--tui")
	assert.Contains(t, out, "Show the status view")
}

func TestErrorHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewErrorHandler(false, &buf)

	err := errors.DaemonUnavailable("127.0.0.1:9123", fmt.Errorf("connection refused"))
	assert.Equal(t, err, h.Handle(err))
	assert.Contains(t, buf.String(), "127.0.0.1:9123")
	assert.Contains(t, buf.String(), "uireload daemon start")

	buf.Reset()
	assert.NoError(t, h.Handle(nil))
	assert.Empty(t, buf.String())

	buf.Reset()
	h.Verbose = true
	_ = h.Handle(errors.BuildTimeout("ui_1", "5m0s"))
	assert.Contains(t, buf.String(), "ui_1")
	assert.Contains(t, buf.String(), "BUILD_TIMEOUT")
}
