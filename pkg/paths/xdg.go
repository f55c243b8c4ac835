// Package paths provides XDG-compliant path resolution for uireload.
//
// Resolution order:
// 1. UIRELOAD_HOME (portable root) → $UIRELOAD_HOME/{config,state,run}
// 2. XDG env vars → $XDG_*_HOME/uireload
// 3. Platform defaults → ~/.config/uireload, ~/.local/state/uireload
package paths

import (
	"os"
	"path/filepath"
)

const appName = "uireload"

func baseDir(sub, xdgVar string, fallback ...string) string {
	if home := os.Getenv("UIRELOAD_HOME"); home != "" {
		return filepath.Join(home, sub)
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append(append([]string{homeDir}, fallback...), appName)...)
	}
	return ""
}

// ConfigDir returns the global configuration directory.
func ConfigDir() string {
	return baseDir("config", "XDG_CONFIG_HOME", ".config")
}

// StateDir returns the directory for runtime state such as pid files.
func StateDir() string {
	return baseDir("state", "XDG_STATE_HOME", ".local", "state")
}

// RuntimeDir returns the directory for sockets and other ephemeral files.
// Uses XDG_RUNTIME_DIR when available, falls back to StateDir.
func RuntimeDir() string {
	if home := os.Getenv("UIRELOAD_HOME"); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// GlobalConfigPath returns the path of the user-wide config file.
func GlobalConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "uireload.yml")
}

// DaemonPidFilePath returns the path to the build daemon PID file.
func DaemonPidFilePath() string {
	return filepath.Join(StateDir(), "buildd.pid")
}

// LogDir returns the per-project log directory rooted at dir.
func LogDir(dir string) string {
	return filepath.Join(dir, ".uireload", "logs")
}
