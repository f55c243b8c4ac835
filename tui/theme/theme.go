// Package theme holds the shared lipgloss styles used by the CLI, the log
// formatter and the reload status view.
package theme

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// --- Kanagawa Dragon palette ---
const (
	kanagawaGreen     = "#98BB6C"
	kanagawaYellow    = "#FF9E3B"
	kanagawaRed       = "#FF5D62"
	kanagawaOrange    = "#FFA066"
	kanagawaCyan      = "#7E9CD8"
	kanagawaViolet    = "#957FB8"
	kanagawaLightText = "#DCD7BA"
	kanagawaMutedText = "#727169"
	kanagawaBorder    = "#363646"
	kanagawaSelected  = "#223249"
)

// Status icons.
const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "⚠"
	IconRunning = "↻"
	IconIdle    = "•"
	IconArrow   = "→"
)

// Colors is a named palette.
type Colors struct {
	Green, Yellow, Red, Orange, Cyan, Violet lipgloss.TerminalColor
	LightText, MutedText, Border, Selected   lipgloss.TerminalColor
}

// Theme groups every style the tool renders with.
type Theme struct {
	Colors Colors

	Header   lipgloss.Style
	Title    lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Info     lipgloss.Style
	Accent   lipgloss.Style
	Selected lipgloss.Style
	Box      lipgloss.Style
	Key      lipgloss.Style
}

// DefaultTheme is the theme used unless a caller builds its own.
var DefaultTheme = NewTheme()

// NewTheme picks the palette for the current terminal. NO_COLOR or an ASCII
// color profile selects plain terminal colors.
func NewTheme() *Theme {
	if os.Getenv("NO_COLOR") != "" || termenv.EnvColorProfile() == termenv.Ascii {
		return newTheme(terminalColors())
	}
	return newTheme(kanagawaColors())
}

func kanagawaColors() Colors {
	return Colors{
		Green:     lipgloss.Color(kanagawaGreen),
		Yellow:    lipgloss.Color(kanagawaYellow),
		Red:       lipgloss.Color(kanagawaRed),
		Orange:    lipgloss.Color(kanagawaOrange),
		Cyan:      lipgloss.Color(kanagawaCyan),
		Violet:    lipgloss.Color(kanagawaViolet),
		LightText: lipgloss.Color(kanagawaLightText),
		MutedText: lipgloss.Color(kanagawaMutedText),
		Border:    lipgloss.Color(kanagawaBorder),
		Selected:  lipgloss.Color(kanagawaSelected),
	}
}

func terminalColors() Colors {
	return Colors{
		Green:     lipgloss.Color("2"),
		Yellow:    lipgloss.Color("3"),
		Red:       lipgloss.Color("1"),
		Orange:    lipgloss.Color("3"),
		Cyan:      lipgloss.Color("6"),
		Violet:    lipgloss.Color("5"),
		LightText: lipgloss.NoColor{},
		MutedText: lipgloss.Color("8"),
		Border:    lipgloss.Color("8"),
		Selected:  lipgloss.Color("4"),
	}
}

func newTheme(colors Colors) *Theme {
	return &Theme{
		Colors: colors,

		Header: lipgloss.NewStyle().
			Foreground(colors.Cyan).
			Bold(true),

		Title: lipgloss.NewStyle().
			Foreground(colors.LightText).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(colors.MutedText),

		Success: lipgloss.NewStyle().
			Foreground(colors.Green).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(colors.Red).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(colors.Yellow),

		Info: lipgloss.NewStyle().
			Foreground(colors.Cyan),

		Accent: lipgloss.NewStyle().
			Foreground(colors.Violet).
			Bold(true),

		Selected: lipgloss.NewStyle().
			Background(colors.Selected).
			Foreground(colors.LightText),

		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Border).
			Padding(0, 1),

		Key: lipgloss.NewStyle().
			Foreground(colors.MutedText),
	}
}

// RenderHeader renders a section header.
func RenderHeader(title string) string {
	return DefaultTheme.Header.Render(title)
}
