package command

import (
	"context"
	osexec "os/exec"
	"testing"
)

func TestValidateOutputStem(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"timestamped stem", "stratum-ui_reload_20250101_120000", false},
		{"collision suffix", "stratum-ui_reload_20250101_120000_2", false},
		{"empty", "", true},
		{"path separator", "a/b", true},
		{"traversal", "../x", true},
		{"shell metachar", "ui;rm", true},
		{"leading dash", "-ui", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOutputStem(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateOutputStem(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"desktop", false},
		{"linux_x64", false},
		{"", true},
		{"Desktop", true},
		{"desk top", true},
	}

	for _, tt := range tests {
		if err := validateTarget(tt.input); (err != nil) != tt.wantErr {
			t.Errorf("validateTarget(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestSafeBuilder(t *testing.T) {
	sb := NewSafeBuilder()

	if err := sb.Validate("outputStem", "ui_reload_1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := sb.Validate("target", "desktop"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := sb.Validate("unknown", "x"); err == nil {
		t.Error("expected error for unknown validator")
	}

	if _, err := sb.Build(context.Background(), ""); err == nil {
		t.Error("expected error for empty command name")
	}

	cmd, err := sb.Build(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	execCmd := cmd.InDir(t.TempDir()).Exec()
	if execCmd.Dir == "" {
		t.Error("InDir should set the working directory")
	}
	if len(execCmd.Args) != 2 || execCmd.Args[1] != "hello" {
		t.Errorf("unexpected args: %v", execCmd.Args)
	}
}

func TestExecutorInjection(t *testing.T) {
	var gotName string
	var gotArgs []string
	exec := ExecutorFunc(func(ctx context.Context, name string, args ...string) *osexec.Cmd {
		gotName, gotArgs = name, args
		return osexec.CommandContext(ctx, "true")
	})

	cmd, err := NewSafeBuilderWithExecutor(exec).Build(context.Background(), "python3", "build.py", "--dynamic")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	execCmd := cmd.InDir("/tmp").Exec()

	if gotName != "python3" || len(gotArgs) != 2 || gotArgs[1] != "--dynamic" {
		t.Errorf("executor saw %s %v", gotName, gotArgs)
	}
	if execCmd.Dir != "/tmp" {
		t.Errorf("Dir = %q, want /tmp", execCmd.Dir)
	}
}

func TestNilExecutorFallsBack(t *testing.T) {
	cmd, err := NewSafeBuilderWithExecutor(nil).Build(context.Background(), "echo")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if cmd.Exec() == nil {
		t.Fatal("expected a command")
	}
}

func TestExecWaitDelay(t *testing.T) {
	cmd, _ := NewSafeBuilder().Build(context.Background(), "true")
	if got := cmd.Exec().WaitDelay; got != WaitDelay {
		t.Errorf("WaitDelay = %v, want %v", got, WaitDelay)
	}
}
