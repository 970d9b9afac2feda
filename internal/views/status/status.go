package status

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/riptide-proxy/autostart-tui/internal/progress"
	"github.com/riptide-proxy/autostart-tui/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Project    string
	Phase      string
	Counts     progress.Counts
	Reload     string
	Width      int
	diagnostic string

	spinner spinner.Model
}

// New creates a status bar model.
func New(project string) Model {
	return Model{
		Project: project,
		Phase:   "connecting",
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.ColorConnecting)),
		),
	}
}

// Diagnostic records the one line shown when the channel closes early.
func (m *Model) Diagnostic(msg string) {
	m.diagnostic = msg
}

// LastDiagnostic returns the recorded diagnostic, if any.
func (m Model) LastDiagnostic() string {
	return m.diagnostic
}

// Waiting reports whether the session has not started running yet.
func (m Model) Waiting() bool {
	return m.Phase == "connecting" || m.Phase == "awaiting ready"
}

// Tick starts the spinner.
func (m Model) Tick() tea.Msg {
	return m.spinner.Tick()
}

// Update advances the spinner while the session is waiting. The tick chain
// ends once it is not.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); !ok || !m.Waiting() {
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// View renders the status bar.
func (m Model) View() string {
	width := max(m.Width, 40)

	phaseStyle := lipgloss.NewStyle().Foreground(theme.PhaseColor(m.Phase))
	phaseStr := phaseStyle.Render("● " + m.Phase)
	if m.Waiting() {
		phaseStr = m.spinner.View() + phaseStyle.Render(m.Phase)
	}

	project := lipgloss.NewStyle().Foreground(theme.ColorBright).Bold(true).Render(m.Project)
	counts := fmt.Sprintf("%d done  %d running  %d waiting  %d failed",
		m.Counts.Finished, m.Counts.InProgress, m.Counts.Pending, m.Counts.Failed)

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := project + sep + phaseStr + sep + counts
	if m.Reload != "" {
		content += sep + theme.StyleDimmed.Render(m.Reload)
	}
	if m.diagnostic != "" {
		content += "\n" + theme.StyleError.Render(m.diagnostic)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
