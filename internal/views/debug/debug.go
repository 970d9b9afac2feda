// Package debug provides a scrollable overlay of raw channel frames and
// phase changes.
package debug

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/TylerBrock/colorjson"
	"github.com/charmbracelet/lipgloss"
	"github.com/riptide-proxy/autostart-tui/internal/theme"
)

const maxEntries = 200

// Entry kinds.
const (
	KindIn    = "in"
	KindOut   = "out"
	KindPhase = "phase"
	KindErr   = "err"
)

// Entry is a single event log line.
type Entry struct {
	Time    time.Time
	Kind    string
	Message string
}

// Model holds debug log state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset (from bottom)
	// Color enables JSON syntax highlighting of frames.
	Color bool
}

// New creates an empty debug model.
func New() Model {
	return Model{Color: true}
}

// Add appends a log entry and caps the buffer.
func (m *Model) Add(kind, message string) {
	m.Entries = append(m.Entries, Entry{
		Time:    time.Now(),
		Kind:    kind,
		Message: message,
	})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// AddFrame logs a raw JSON frame in one line. Frames that are not JSON
// objects are logged verbatim.
func (m *Model) AddFrame(kind string, data []byte) {
	m.Add(kind, m.compact(data))
}

func (m *Model) compact(data []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return strings.TrimSpace(string(data))
	}
	f := colorjson.NewFormatter()
	f.Indent = 0
	f.DisabledColor = !m.Color
	out, err := f.Marshal(obj)
	if err != nil {
		return strings.TrimSpace(string(data))
	}
	return string(out)
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the debug log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visibleLines := max(height-6, 3)

	title := theme.StyleHeader.Render(" CHANNEL LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No frames yet.")
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help)
		return panelStyle(innerW).Render(content)
	}

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-visibleLines, 0)

	msgW := innerW - 24
	var lines []string
	for _, e := range m.Entries[start:end] {
		tsStr := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kindStr := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(6).Render(e.Kind)
		msgStr := e.Message
		if msgW > 3 && lipgloss.Width(msgStr) > msgW {
			msgStr = lipgloss.NewStyle().MaxWidth(msgW-3).Render(msgStr) + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", tsStr, kindStr, msgStr))
	}

	body := strings.Join(lines, "\n")
	scrollIndicator := ""
	if m.Offset > 0 {
		scrollIndicator = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, body, scrollIndicator, help)
	return panelStyle(innerW).Render(content)
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindIn:
		return theme.ColorRunning
	case KindOut:
		return theme.ColorInProgress
	case KindPhase:
		return theme.ColorConnecting
	case KindErr:
		return theme.ColorFailure
	default:
		return theme.ColorDimmed
	}
}
