//go:build unix

package command

import (
	"bytes"
	"context"
	osexec "os/exec"
	"testing"
	"time"
)

func TestExecSetsProcessGroup(t *testing.T) {
	cmd, _ := NewSafeBuilder().Build(context.Background(), "true")
	execCmd := cmd.Exec()
	if execCmd.SysProcAttr == nil || !execCmd.SysProcAttr.Setpgid {
		t.Fatal("expected the command to lead its own process group")
	}
}

// A tool that forks a child sharing its stdout must not hold Wait past the
// deadline.
func TestCancelKillsForkedChildren(t *testing.T) {
	if _, err := osexec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cmd, err := NewSafeBuilder().Build(ctx, "sh", "-c", "sleep 5 & sleep 5")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	execCmd := cmd.Exec()
	var out bytes.Buffer
	execCmd.Stdout = &out
	execCmd.Stderr = &out

	start := time.Now()
	if err := execCmd.Run(); err == nil {
		t.Fatal("expected the command to be killed")
	}
	if elapsed := time.Since(start); elapsed > WaitDelay+time.Second {
		t.Errorf("Run returned after %v, want well under 5s", elapsed)
	}
}
