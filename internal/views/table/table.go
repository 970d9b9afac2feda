// Package table renders the autostart table: one row per service with its
// step counter, a fill bar and the last status text.
package table

import (
	"fmt"
	"strings"
	"time"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/harmonica"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/riptide-proxy/autostart-tui/internal/progress"
	"github.com/riptide-proxy/autostart-tui/internal/theme"
)

const (
	fps        = 60
	minNameCol = 8
	maxNameCol = 24
	barWidth   = 24
	// settled is how close (in percent) a bar must be to its target to stop
	// animating.
	settled = 0.25
)

// AnimateMsg advances the bar animation by one frame.
type AnimateMsg struct{}

type fill struct {
	pos, vel, target float64
}

// Model holds the table's presentation state. Row data lives in a
// progress.Table and is passed in on each call.
type Model struct {
	Width   int
	Animate bool

	bar     bprogress.Model
	spring  harmonica.Spring
	fills   map[string]*fill
	ticking bool
}

// New creates a table view.
func New(animate bool) Model {
	return Model{
		Animate: animate,
		bar: bprogress.New(
			bprogress.WithSolidFill(string(theme.ColorPending)),
			bprogress.WithWidth(barWidth),
			bprogress.WithoutPercentage(),
		),
		spring: harmonica.NewSpring(harmonica.FPS(fps), 8.0, 1.0),
		fills:  make(map[string]*fill),
	}
}

// Sync points every bar at its row's current percentage. It returns a
// command that starts the animation when a bar has somewhere to go.
func (m *Model) Sync(entries []progress.Entry) tea.Cmd {
	for _, e := range entries {
		f, ok := m.fills[e.ID]
		if !ok {
			f = &fill{}
			m.fills[e.ID] = f
		}
		f.target = float64(e.Percent)
		if !m.Animate {
			f.pos, f.vel = f.target, 0
		}
	}
	if !m.Animate || m.ticking || !m.moving() {
		return nil
	}
	m.ticking = true
	return tick()
}

// Update steps the animation.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(AnimateMsg); !ok {
		return m, nil
	}
	for _, f := range m.fills {
		f.pos, f.vel = m.spring.Update(f.pos, f.vel, f.target)
		if abs(f.target-f.pos) < settled && abs(f.vel) < settled {
			f.pos, f.vel = f.target, 0
		}
	}
	if !m.moving() {
		m.ticking = false
		return m, nil
	}
	return m, tick()
}

// Shown returns the percentage currently drawn for a row.
func (m Model) Shown(id string) float64 {
	if f, ok := m.fills[id]; ok {
		return f.pos
	}
	return 0
}

func (m Model) moving() bool {
	for _, f := range m.fills {
		if f.pos != f.target {
			return true
		}
	}
	return false
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return AnimateMsg{} })
}

// View renders the table.
func (m Model) View(entries []progress.Entry) string {
	width := max(m.Width, 60)
	header := theme.StyleHeader.Render("  Autostart")
	if len(entries) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render("  No services"))
	}

	nameCol := nameWidth(entries)
	stepCol := 7
	pctCol := 5
	statusCol := max(width-(2+2+nameCol+stepCol+barWidth+pctCol+5), 10)

	dim := lipgloss.NewStyle().Foreground(theme.ColorDimmed)
	tableHeader := fmt.Sprintf("    %-*s %*s %-*s %*s %s",
		nameCol, "Service",
		stepCol, "Step",
		barWidth, "Progress",
		pctCol, "",
		"Status",
	)
	lines := []string{
		header,
		dim.Render(tableHeader),
		dim.Render("  " + strings.Repeat("─", min(width-4, 2+nameCol+stepCol+barWidth+pctCol+statusCol+4))),
	}

	for _, e := range entries {
		lines = append(lines, m.renderRow(e, nameCol, stepCol, pctCol, statusCol))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// nameWidth sizes the service column in terminal cells.
func nameWidth(entries []progress.Entry) int {
	w := minNameCol
	for _, e := range entries {
		w = max(w, lipgloss.Width(e.ID)+1)
	}
	return min(w, maxNameCol)
}

func (m Model) renderRow(e progress.Entry, nameCol, stepCol, pctCol, statusCol int) string {
	state := e.State.String()
	color := theme.StateColor(state)
	colored := lipgloss.NewStyle().Foreground(color)

	glyph := colored.Render(theme.StateGlyph(state))
	name := truncate(e.ID, nameCol-1)
	nameStr := lipgloss.NewStyle().Foreground(theme.ColorBright).Width(nameCol).Render(name)

	steps := fmt.Sprintf("%s/%s", e.CurrentLabel(), e.StepsLabel())
	stepStr := lipgloss.NewStyle().Width(stepCol).Align(lipgloss.Right).Render(steps)

	bar := m.bar
	bar.FullColor = string(color)
	bar.EmptyColor = string(theme.ColorTrack)
	barStr := bar.ViewAs(m.Shown(e.ID) / 100)

	pctStr := colored.Width(pctCol).Align(lipgloss.Right).Render(fmt.Sprintf("%d%%", e.Percent))

	text := truncate(e.StatusText, statusCol)
	var statusStr string
	if e.State == progress.Failed {
		statusStr = theme.StyleError.Render(text)
	} else {
		statusStr = theme.StyleDimmed.Render(text)
	}

	return fmt.Sprintf("  %s %s %s %s %s %s", glyph, nameStr, stepStr, barStr, pctStr, statusStr)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
