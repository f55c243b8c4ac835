package reloadview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/uireload/pkg/consumer"
)

// renderPreview draws an RGB565 framebuffer with upper half blocks, two
// pixel rows per terminal row, downsampled to at most cols columns. Pixels
// inside a flash rectangle are drawn in flash instead.
func renderPreview(pixels []uint16, width, height, cols int, flashes []consumer.FrameRect, flash lipgloss.TerminalColor) string {
	if width <= 0 || height <= 0 || cols <= 0 || len(pixels) < width*height {
		return ""
	}
	step := max(1, (width+cols-1)/cols)

	flashed := func(x, y int) bool {
		for _, f := range flashes {
			for _, r := range f.Rects {
				if int32(x) >= r.X1 && int32(x) <= r.X2 && int32(y) >= r.Y1 && int32(y) <= r.Y2 {
					return true
				}
			}
		}
		return false
	}
	color := func(x, y int) lipgloss.TerminalColor {
		if flash != nil && flashed(x, y) {
			return flash
		}
		r, g, b := consumer.RGB(pixels[y*width+x])
		return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r, g, b))
	}

	var sb strings.Builder
	for y := 0; y < height; y += 2 * step {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < width; x += step {
			style := lipgloss.NewStyle().Foreground(color(x, y))
			if below := y + step; below < height {
				style = style.Background(color(x, below))
			}
			sb.WriteString(style.Render("▀"))
		}
	}
	return sb.String()
}
