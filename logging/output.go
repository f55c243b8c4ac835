package logging

import (
	"context"
	"io"
	"os"
	"sync/atomic"
)

// swapWriter forwards writes to a replaceable destination. Every component
// logger's terminal sink goes through the shared instance, so one call moves
// all of them at once.
type swapWriter struct {
	dst atomic.Pointer[io.Writer]
}

func newSwapWriter(w io.Writer) *swapWriter {
	s := &swapWriter{}
	s.dst.Store(&w)
	return s
}

func (s *swapWriter) Write(p []byte) (int, error) {
	return (*s.dst.Load()).Write(p)
}

func (s *swapWriter) swap(w io.Writer) io.Writer {
	return *s.dst.Swap(&w)
}

var terminal = newSwapWriter(os.Stderr)

// SetGlobalOutput redirects the terminal sink of every component logger and
// returns a func restoring the previous destination. The status view points
// it at io.Discard while it owns the screen.
func SetGlobalOutput(w io.Writer) (restore func()) {
	if w == nil {
		w = io.Discard
	}
	prev := terminal.swap(w)
	return func() { terminal.swap(prev) }
}

// GetGlobalOutput returns the shared terminal sink.
func GetGlobalOutput() io.Writer {
	return terminal
}

type buildOutputKey struct{}

// WithBuildOutput attaches a writer that receives the raw output of the
// build tool, in addition to the per-line log records.
func WithBuildOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, buildOutputKey{}, w)
}

// BuildOutput returns the writer attached by WithBuildOutput.
func BuildOutput(ctx context.Context) (io.Writer, bool) {
	w, ok := ctx.Value(buildOutputKey{}).(io.Writer)
	return w, ok && w != nil
}
