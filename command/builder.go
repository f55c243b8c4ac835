package command

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"
)

// WaitDelay is how long Wait keeps copying output after the build tool was
// killed. Grandchildren that inherited the pipes are not waited for longer.
const WaitDelay = 2 * time.Second

var (
	outputStemRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	targetRegex     = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

// SafeBuilder validates the arguments handed to the build tool before a
// command is created.
type SafeBuilder struct {
	validators map[string]func(string) error
	executor   Executor
}

// NewSafeBuilder returns a SafeBuilder backed by os/exec.
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(RealExecutor)
}

// NewSafeBuilderWithExecutor returns a SafeBuilder that creates commands
// through exec. A nil exec means os/exec.
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	if exec == nil {
		exec = RealExecutor
	}
	return &SafeBuilder{
		validators: map[string]func(string) error{
			"outputStem": validateOutputStem,
			"target":     validateTarget,
		},
		executor: exec,
	}
}

// validateOutputStem ensures an artifact stem is a single safe path element.
func validateOutputStem(stem string) error {
	if stem == "" {
		return fmt.Errorf("output stem cannot be empty")
	}
	if !outputStemRegex.MatchString(stem) {
		return fmt.Errorf("invalid output stem: %s (letters, digits, '.', '_' and '-' only)", stem)
	}
	if len(stem) > 200 {
		return fmt.Errorf("output stem too long: %s", stem)
	}
	return nil
}

// validateTarget ensures a platform id is a plain lowercase token.
func validateTarget(target string) error {
	if target == "" {
		return fmt.Errorf("target cannot be empty")
	}
	if !targetRegex.MatchString(target) {
		return fmt.Errorf("invalid target: %s", target)
	}
	return nil
}

// Command represents a validated command configuration
type Command struct {
	ctx      context.Context
	name     string
	args     []string
	dir      string
	executor Executor
}

// Build creates a new command bound to ctx.
func (sb *SafeBuilder) Build(ctx context.Context, name string, args ...string) (*Command, error) {
	if name == "" {
		return nil, fmt.Errorf("command name cannot be empty")
	}
	return &Command{
		ctx:      ctx,
		name:     name,
		args:     args,
		executor: sb.executor,
	}, nil
}

// Validate validates specific arguments
func (sb *SafeBuilder) Validate(argType string, value string) error {
	validator, exists := sb.validators[argType]
	if !exists {
		return fmt.Errorf("no validator for argument type: %s", argType)
	}
	return validator(value)
}

// InDir sets the working directory.
func (c *Command) InDir(dir string) *Command {
	c.dir = dir
	return c
}

// Exec creates and returns an exec.Cmd. The command runs in its own process
// group; cancelling the context kills the whole group.
func (c *Command) Exec() *exec.Cmd {
	cmd := c.executor.CommandContext(c.ctx, c.name, c.args...) //nolint:gosec // SafeBuilder provides validation
	if c.dir != "" {
		cmd.Dir = c.dir
	}
	// Only commands created with a context may carry Cancel.
	if cmd.Cancel != nil {
		setProcessGroup(cmd)
		cmd.WaitDelay = WaitDelay
	}
	return cmd
}
