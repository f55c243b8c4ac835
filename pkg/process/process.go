// Package process inspects and stops local processes by PID.
package process

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// IsProcessAlive reports whether a process with the given PID exists. Signal
// 0 probes for existence; EPERM still means the process is there.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}

// Terminate sends SIGTERM to pid and waits up to grace for it to exit, then
// sends SIGKILL. A process that is already gone is not an error.
func Terminate(pid int, grace time.Duration) error {
	if !IsProcessAlive(pid) {
		return nil
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		if !IsProcessAlive(pid) {
			return nil
		}
		return fmt.Errorf("signal %d: %w", pid, err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !IsProcessAlive(pid) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err := p.Kill(); err != nil && IsProcessAlive(pid) {
		return fmt.Errorf("kill %d: %w", pid, err)
	}
	return nil
}
