package logging

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/uireload/tui/theme"
	"github.com/sirupsen/logrus"
)

// TextFormatter renders one line per record:
//
//	15:04:05.000 WARN  [build] Build daemon unavailable addr=127.0.0.1:9987
type TextFormatter struct {
	DisableTimestamp bool
	DisableComponent bool
}

// Format implements logrus.Formatter.
func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder

	if !f.DisableTimestamp {
		b.WriteString(entry.Time.Format("15:04:05.000"))
		b.WriteByte(' ')
	}
	b.WriteString(levelStyle(entry.Level).Render(fmt.Sprintf("%-5s", levelName(entry.Level))))

	if c, ok := entry.Data["component"]; ok && !f.DisableComponent {
		b.WriteString(" [")
		b.WriteString(theme.DefaultTheme.Accent.Render(fmt.Sprint(c)))
		b.WriteByte(']')
	}
	if entry.HasCaller() {
		fmt.Fprintf(&b, " (%s:%d)", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}

	b.WriteByte(' ')
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != "component" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, fieldValue(entry.Data[k]))
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func levelName(l logrus.Level) string {
	if l == logrus.WarnLevel {
		return "WARN"
	}
	return strings.ToUpper(l.String())
}

func levelStyle(l logrus.Level) lipgloss.Style {
	t := theme.DefaultTheme
	switch l {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return t.Error
	case logrus.WarnLevel:
		return t.Warning
	case logrus.InfoLevel:
		return t.Info
	default:
		return t.Muted
	}
}

// fieldValue quotes values that would otherwise break key=value parsing.
func fieldValue(v interface{}) string {
	s := fmt.Sprint(v)
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
