package errors

import (
	stderrors "errors"
	"fmt"
	"os/exec"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *ReloadError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *ReloadError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// WatcherInit reports a directory that could not be watched.
func WatcherInit(dir string, err error) *ReloadError {
	return Wrap(err, ErrCodeWatcherInit, fmt.Sprintf("cannot watch directory %s", dir)).
		WithDetail("dir", dir)
}

// BuildLaunch reports a build tool that could not be started.
func BuildLaunch(tool string, err error) *ReloadError {
	return Wrap(err, ErrCodeBuildLaunch, fmt.Sprintf("build tool failed to launch: %s", tool)).
		WithDetail("tool", tool)
}

// BuildFailure reports a build that ran and failed.
func BuildFailure(stem string, err error) *ReloadError {
	reloadErr := Wrap(err, ErrCodeBuildFailure, fmt.Sprintf("build failed for %s", stem)).
		WithDetail("stem", stem)

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		reloadErr = reloadErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return reloadErr
}

// BuildTimeout reports a build that did not finish in time.
func BuildTimeout(stem string, timeout string) *ReloadError {
	return New(ErrCodeBuildTimeout,
		fmt.Sprintf("build for %s did not finish within %s", stem, timeout)).
		WithDetail("stem", stem).
		WithDetail("timeout", timeout)
}

// DaemonUnavailable reports a daemon exchange that failed before a verdict was received.
func DaemonUnavailable(addr string, err error) *ReloadError {
	return Wrap(err, ErrCodeDaemonUnavailable, fmt.Sprintf("build daemon at %s unavailable", addr)).
		WithDetail("addr", addr)
}

// ArtifactMissing reports a build that succeeded without producing its artifact.
func ArtifactMissing(path string) *ReloadError {
	return New(ErrCodeArtifactMissing, fmt.Sprintf("plugin not found: %s", path)).
		WithDetail("path", path)
}

// LoadFailed reports an artifact that could not be opened.
func LoadFailed(path string, err error) *ReloadError {
	return Wrap(err, ErrCodeLoadFailed, fmt.Sprintf("failed to load plugin %s", path)).
		WithDetail("path", path)
}

// SymbolMissing reports a required symbol absent from an artifact.
func SymbolMissing(path, symbol string, err error) *ReloadError {
	return Wrap(err, ErrCodeLoadFailed, fmt.Sprintf("plugin %s is missing symbol %s", path, symbol)).
		WithDetail("path", path).
		WithDetail("symbol", symbol)
}

// NoPlugin reports a call made before any plugin was loaded.
func NoPlugin() *ReloadError {
	return New(ErrCodeNoPlugin, "no plugin loaded")
}
