// Package pidfile records the PID of the running build daemon.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grovetools/uireload/pkg/process"
)

// AlreadyRunningError reports a live daemon recorded in the pid file.
type AlreadyRunningError struct {
	Path string
	PID  int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("build daemon already running with PID %d (%s)", e.PID, e.Path)
}

// File is a pid file at a fixed path.
type File struct {
	path string
}

// At returns the pid file at path. Nothing is touched on disk.
func At(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Acquire records the current process. A file naming another live process
// is an *AlreadyRunningError; one naming a dead process is overwritten. The
// PID is written to a sibling temp file and renamed into place so readers
// never see a partial number.
func (f *File) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}
	if pid, err := f.PID(); err == nil && pid != os.Getpid() && process.IsProcessAlive(pid) {
		return &AlreadyRunningError{Path: f.path, PID: pid}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Release deletes the file if it still names this process. A file that is
// missing, or that a newer daemon has taken over, is left alone.
func (f *File) Release() error {
	pid, err := f.PID()
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		// Unreadable contents cannot belong to anyone.
		return os.Remove(f.path)
	case pid != os.Getpid():
		return nil
	}
	return os.Remove(f.path)
}

// PID returns the recorded process id.
func (f *File) PID() (int, error) {
	content, err := os.ReadFile(f.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file %s: %w", f.path, err)
	}
	return pid, nil
}

// Running reports whether the recorded process is alive. A missing file
// means not running.
func (f *File) Running() (bool, int, error) {
	pid, err := f.PID()
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	return process.IsProcessAlive(pid), pid, nil
}
