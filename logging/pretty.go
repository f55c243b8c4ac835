package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/uireload/tui/theme"
)

// PrettyLogger writes the styled lines a person reads at the end of a
// command. Anything worth keeping goes through NewLogger instead.
type PrettyLogger struct {
	w io.Writer
	t *theme.Theme
}

// NewPrettyLogger writes to stderr until WithWriter says otherwise.
func NewPrettyLogger() *PrettyLogger {
	return &PrettyLogger{w: os.Stderr, t: theme.DefaultTheme}
}

// WithWriter redirects output to w.
func (p *PrettyLogger) WithWriter(w io.Writer) *PrettyLogger {
	p.w = w
	return p
}

func (p *PrettyLogger) line(icon string, style lipgloss.Style, msg string) {
	if icon == "" {
		fmt.Fprintln(p.w, style.Render(msg))
		return
	}
	fmt.Fprintln(p.w, style.Render(icon+" "+msg))
}

// Success prints msg with a check mark.
func (p *PrettyLogger) Success(msg string) { p.line(theme.IconSuccess, p.t.Success, msg) }

// Info prints msg plainly in the info colour.
func (p *PrettyLogger) Info(msg string) { p.line("", p.t.Info, msg) }

// Warn prints msg with a warning sign.
func (p *PrettyLogger) Warn(msg string) { p.line(theme.IconWarning, p.t.Warning, msg) }

// Error prints msg, followed by err when non-nil.
func (p *PrettyLogger) Error(msg string, err error) {
	if err != nil {
		msg += ": " + err.Error()
	}
	p.line(theme.IconError, p.t.Error, msg)
}

// Path prints a labelled file path.
func (p *PrettyLogger) Path(label, path string) {
	p.Fields(Field{label, path})
}

// Field is one row for Fields.
type Field struct {
	Key   string
	Value interface{}
}

// Fields prints key/value rows with the values aligned.
func (p *PrettyLogger) Fields(rows ...Field) {
	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r.Key))
	}
	key := p.t.Key.Width(width + 1)
	for _, r := range rows {
		fmt.Fprintf(p.w, "  %s %s\n", key.Render(r.Key+":"), fmt.Sprint(r.Value))
	}
}
