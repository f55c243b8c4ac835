package command

import (
	"context"
	"os/exec"
)

// Executor turns a validated command into an exec.Cmd. Tests swap it to
// record invocations or to point the build tool at a fake binary.
type Executor interface {
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// CommandContext calls f.
func (f ExecutorFunc) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return f(ctx, name, args...)
}

// RealExecutor runs commands through os/exec.
var RealExecutor Executor = ExecutorFunc(exec.CommandContext)
