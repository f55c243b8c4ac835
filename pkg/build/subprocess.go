package build

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/grovetools/uireload/command"
	"github.com/grovetools/uireload/errors"
	"github.com/grovetools/uireload/logging"
	"github.com/sirupsen/logrus"
)

// SubprocessBuilder runs the build tool once per build.
type SubprocessBuilder struct {
	tool    []string
	workDir string
	builder *command.SafeBuilder
	logger  *logrus.Entry
}

// NewSubprocessBuilder returns a builder running tool (argv) in workDir.
// A nil SafeBuilder uses the real executor.
func NewSubprocessBuilder(tool []string, workDir string, builder *command.SafeBuilder, logger *logrus.Entry) *SubprocessBuilder {
	if builder == nil {
		builder = command.NewSafeBuilder()
	}
	return &SubprocessBuilder{
		tool:    append([]string(nil), tool...),
		workDir: workDir,
		builder: builder,
		logger:  logger,
	}
}

// Tool returns the build tool argv.
func (s *SubprocessBuilder) Tool() []string {
	return append([]string(nil), s.tool...)
}

// Build runs `<tool> --dynamic --output-name <stem>` and waits for it. Tool
// output is streamed line by line into the logger, and into the context's
// build output writer when one is attached.
func (s *SubprocessBuilder) Build(ctx context.Context, stem string) error {
	if len(s.tool) == 0 {
		return errors.BuildLaunch("", fmt.Errorf("no build tool configured"))
	}
	if err := s.builder.Validate("outputStem", stem); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "refusing to build").WithDetail("stem", stem)
	}

	args := append(append([]string(nil), s.tool[1:]...), DynamicFlags(stem)...)
	cmd, err := s.builder.Build(ctx, s.tool[0], args...)
	if err != nil {
		return errors.BuildLaunch(s.tool[0], err)
	}
	execCmd := cmd.InDir(s.workDir).Exec()

	stdout := newLineLogger(s.logger.WithField("stream", "stdout"), logrus.InfoLevel)
	stderr := newLineLogger(s.logger.WithField("stream", "stderr"), logrus.WarnLevel)
	var tail tailBuffer
	if out, ok := logging.BuildOutput(ctx); ok {
		execCmd.Stdout = io.MultiWriter(stdout, out)
		execCmd.Stderr = io.MultiWriter(stderr, &tail, out)
	} else {
		execCmd.Stdout = stdout
		execCmd.Stderr = io.MultiWriter(stderr, &tail)
	}

	s.logger.WithFields(logrus.Fields{
		"tool": strings.Join(s.tool, " "),
		"stem": stem,
		"dir":  s.workDir,
	}).Debug("Starting build tool")

	if err := execCmd.Start(); err != nil {
		return errors.BuildLaunch(s.tool[0], err)
	}
	waitErr := execCmd.Wait()
	stdout.Flush()
	stderr.Flush()

	if waitErr == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	buildErr := errors.BuildFailure(stem, waitErr).WithDetail("strategy", string(StrategySubprocess))
	if t := tail.String(); t != "" {
		buildErr = buildErr.WithDetail("stderr", t)
	}
	return buildErr
}

// lineLogger turns a byte stream into one log record per line.
type lineLogger struct {
	mu     sync.Mutex
	logger *logrus.Entry
	level  logrus.Level
	buf    bytes.Buffer
}

func newLineLogger(logger *logrus.Entry, level logrus.Level) *lineLogger {
	return &lineLogger{logger: logger, level: level}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// Incomplete line, keep it for the next write.
			l.buf.Reset()
			l.buf.WriteString(line)
			break
		}
		l.emit(line)
	}
	return len(p), nil
}

// Flush logs a trailing line without newline.
func (l *lineLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf.Len() > 0 {
		l.emit(l.buf.String())
		l.buf.Reset()
	}
}

func (l *lineLogger) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line != "" {
		l.logger.Log(l.level, line)
	}
}

// tailBuffer keeps the last tailSize bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

const tailSize = 2048

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > tailSize {
		t.buf = t.buf[len(t.buf)-tailSize:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

// isContextErr reports whether err is a context cancellation or deadline.
func isContextErr(err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled)
}
