// Package profiling records wall-clock spans for a single command run and
// prints them as an indented tree.
package profiling

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Span is one timed operation. A nil *Span is valid and records nothing,
// which is what callers get while profiling is disabled.
type Span struct {
	rec      *Recorder
	name     string
	start    time.Time
	duration time.Duration
	done     bool
	children []*Span
}

// Child starts a span nested under s.
func (s *Span) Child(name string) *Span {
	if s == nil {
		return nil
	}
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	c := &Span{rec: s.rec, name: name, start: s.rec.now()}
	s.children = append(s.children, c)
	return c
}

// Stop ends the span. Only the first call counts.
func (s *Span) Stop() {
	if s == nil {
		return
	}
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	if !s.done {
		s.duration = s.rec.now().Sub(s.start)
		s.done = true
	}
}

// Recorder owns a tree of spans. It is safe for concurrent use; siblings
// started from different goroutines are kept in start order.
type Recorder struct {
	mu   sync.Mutex
	now  func() time.Time
	root *Span
}

// NewRecorder starts a recorder whose root span opens immediately. now may
// be nil.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	r := &Recorder{now: now}
	r.root = &Span{rec: r, name: "total", start: now()}
	return r
}

// Root returns the top-level span.
func (r *Recorder) Root() *Span {
	if r == nil {
		return nil
	}
	return r.root
}

// WriteSummary stops the root span and prints the tree with each span's
// share of the total. Spans still running are marked as such.
func (r *Recorder) WriteSummary(w io.Writer) {
	if r == nil {
		return
	}
	r.root.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	total := r.root.duration
	fmt.Fprintf(w, "timing: %s\n", total.Round(100*time.Microsecond))
	for _, c := range r.root.children {
		writeSpan(w, c, 1, total)
	}
}

func writeSpan(w io.Writer, s *Span, depth int, total time.Duration) {
	indent := strings.Repeat("  ", depth)
	if !s.done {
		fmt.Fprintf(w, "%s%s (running)\n", indent, s.name)
	} else {
		pct := 0.0
		if total > 0 {
			pct = float64(s.duration) / float64(total) * 100
		}
		fmt.Fprintf(w, "%s%s %s (%.1f%%)\n", indent, s.name, s.duration.Round(100*time.Microsecond), pct)
	}
	for _, c := range s.children {
		writeSpan(w, c, depth+1, total)
	}
}

type spanKey struct{}

// WithSpan returns ctx carrying s as the parent for Start.
func WithSpan(ctx context.Context, s *Span) context.Context {
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, spanKey{}, s)
}

// Start opens a span under the one carried by ctx and returns a context
// carrying the new span. Without a parent it returns a nil span and ctx
// unchanged.
func Start(ctx context.Context, name string) (*Span, context.Context) {
	parent, _ := ctx.Value(spanKey{}).(*Span)
	if parent == nil {
		return nil, ctx
	}
	s := parent.Child(name)
	return s, context.WithValue(ctx, spanKey{}, s)
}
