// Package theme provides the Lip Gloss color palette and reusable styles
// for the autostart TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Row state colors. They mirror the yellow/green/red bar classes of the
// proxy's autostart page.
var (
	ColorPending    = lipgloss.Color("#6b7280")
	ColorInProgress = lipgloss.Color("#eab308")
	ColorSuccess    = lipgloss.Color("#16a34a")
	ColorFailure    = lipgloss.Color("#dc2626")
)

// Phase colors.
var (
	ColorConnecting = lipgloss.Color("#7c3aed")
	ColorWaiting    = lipgloss.Color("#d97706")
	ColorRunning    = lipgloss.Color("#2563eb")
	ColorCompleted  = lipgloss.Color("#16a34a")
	ColorClosed     = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorTrack   = lipgloss.Color("#374151")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// StateColor returns the color for a row state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "pending":
		return ColorPending
	case "in progress":
		return ColorInProgress
	case "finished":
		return ColorSuccess
	case "failed":
		return ColorFailure
	default:
		return ColorDefault
	}
}

// PhaseColor returns the color for a session phase name.
func PhaseColor(phase string) lipgloss.Color {
	switch phase {
	case "connecting":
		return ColorConnecting
	case "awaiting ready":
		return ColorWaiting
	case "running":
		return ColorRunning
	case "completed":
		return ColorCompleted
	case "closed":
		return ColorClosed
	default:
		return ColorDefault
	}
}

// StateGlyph returns a glyph for a row state name.
func StateGlyph(state string) string {
	switch state {
	case "pending":
		return "○"
	case "in progress":
		return "◎"
	case "finished":
		return "✓"
	case "failed":
		return "✗"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleError = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorFailure)
)
