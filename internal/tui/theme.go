package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme/palette helpers.
//
// The browser must remain readable on both light and dark terminal backgrounds, so
// colors are lipgloss.AdaptiveColor pairs.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	colorMuted     = ac("240", "243")
	colorSurfaceFg = ac("235", "252")
	colorControlBg = ac("252", "235")
	colorAccent    = ac("27", "62")
	colorOpen      = ac("#9a6700", "#d29922")
	colorDone      = ac("#1a7f37", "#3fb950")
	colorBorder    = ac("250", "243")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	openKwStyle = lipgloss.NewStyle().Bold(true).Foreground(colorOpen)
	doneKwStyle = lipgloss.NewStyle().Bold(true).Foreground(colorDone)
	tagStyle    = lipgloss.NewStyle().Foreground(colorAccent)
	paneStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder)
	focusedPane = paneStyle.BorderForeground(colorAccent)
	footerStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// ConfigureColor applies --no-color and the NO_COLOR convention to every lipgloss
// renderer in the process.
func ConfigureColor(noColor bool) {
	if noColor || strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
