// Package help renders the key binding overlay from Markdown.
package help

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/riptide-proxy/autostart-tui/internal/theme"
)

const doc = `# Autostart

The table fills in as the proxy starts each service of the project.
The page is reloaded once every service is up.

| Key | Action |
| --- | --- |
| ` + "`q` `ctrl+c`" + ` | quit |
| ` + "`d`" + ` | channel log |
| ` + "`j` `k`" + ` | scroll the log |
| ` + "`?`" + ` | this help |
| ` + "`esc`" + ` | close overlay |

A yellow bar is still starting, green has started and red has failed.
`

// View renders the help panel at the given width. Rendering falls back to
// the raw Markdown if glamour fails.
func View(width int) string {
	innerW := max(width-8, 30)
	body := doc
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(innerW),
	)
	if err == nil {
		if out, err := r.Render(doc); err == nil {
			body = out
		}
	}

	return lipgloss.NewStyle().
		Width(innerW).
		Padding(0, 2).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.TrimRight(body, "\n"))
}
