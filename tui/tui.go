// Package tui holds the terminal views of uireload.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// InitializeTUI forces true color when CLICOLOR_FORCE=1 or
// COLORTERM=truecolor is set, so the plugin preview keeps its colors under
// terminal multiplexers that hide the capability.
func InitializeTUI() {
	if os.Getenv("CLICOLOR_FORCE") == "1" || os.Getenv("COLORTERM") == "truecolor" {
		lipgloss.SetColorProfile(termenv.TrueColor)
	}
}
