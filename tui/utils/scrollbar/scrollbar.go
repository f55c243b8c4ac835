// Package scrollbar draws a one-column scrollbar beside a viewport.
package scrollbar

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/grovetools/uireload/tui/theme"
)

const (
	thumb = "█"
	track = "░"
)

// Generate returns one scrollbar cell per visible line of vp. Content that
// fits entirely is drawn as a full thumb; no content as blanks.
func Generate(vp *viewport.Model, height int) []string {
	if height <= 0 {
		return nil
	}
	style := theme.DefaultTheme.Muted
	cells := make([]string, height)

	total := vp.TotalLineCount()
	if total == 0 {
		for i := range cells {
			cells[i] = " "
		}
		return cells
	}

	size, start := height, 0
	if total > vp.Height {
		size = max(1, height*vp.Height/total)
		pct := min(max(vp.ScrollPercent(), 0), 1)
		start = min(int(float64(height-size)*pct+0.5), height-size)
	}
	for i := range cells {
		if i >= start && i < start+size {
			cells[i] = style.Render(thumb)
		} else {
			cells[i] = style.Render(track)
		}
	}
	return cells
}

// Overlay renders vp with the scrollbar appended to every line.
func Overlay(vp *viewport.Model) string {
	lines := strings.Split(vp.View(), "\n")
	bar := Generate(vp, len(lines))
	for i := range lines {
		lines[i] += bar[i]
	}
	return strings.Join(lines, "\n")
}
