// Package logpanel is an in-editor view of recent log lines.
package logpanel

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/Laloops/tramagrid/internal/log"
	"github.com/Laloops/tramagrid/internal/ui/overlay"
	"github.com/Laloops/tramagrid/internal/ui/styles"
)

const (
	// DefaultCapacity is the number of lines kept when New gets zero.
	DefaultCapacity = 500

	maxRows  = 20
	minRows  = 4
	maxWidth = 140
	minWidth = 40
	// Title, two dividers, footer and the border.
	chromeRows = 6
)

// CloseMsg is sent when the panel hides itself.
type CloseMsg struct{}

// Model keeps a bounded buffer of log lines and renders the ones at or above
// the selected level.
type Model struct {
	lines    []string
	capacity int
	minLevel log.Level
	visible  bool
	width    int
	height   int
	viewport viewport.Model
}

func New(capacity int) Model {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return Model{capacity: capacity, minLevel: log.LevelDebug}
}

// Append stores a formatted log line, dropping the oldest one when full.
func (m *Model) Append(line string) {
	line = strings.TrimRight(line, "\n")
	if line == "" {
		return
	}
	if len(m.lines) == m.capacity {
		copy(m.lines, m.lines[1:])
		m.lines = m.lines[:m.capacity-1]
	}
	m.lines = append(m.lines, line)
	if m.visible {
		m.refresh()
	}
}

// Lines returns the buffered lines that pass the level filter, oldest first.
func (m Model) Lines() []string {
	out := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		if levelOf(l) >= m.minLevel {
			out = append(out, l)
		}
	}
	return out
}

func (m Model) MinLevel() log.Level { return m.minLevel }

func (m Model) Visible() bool { return m.visible }

func (m *Model) Toggle() {
	m.visible = !m.visible
	if m.visible {
		m.refresh()
	}
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.refresh()
}

// Update handles keys while the panel is visible.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "c":
		m.lines = m.lines[:0]
		m.refresh()
	case "d":
		m.setLevel(log.LevelDebug)
	case "i":
		m.setLevel(log.LevelInfo)
	case "w":
		m.setLevel(log.LevelWarn)
	case "e":
		m.setLevel(log.LevelError)
	case "j", "down":
		m.viewport.ScrollDown(1)
	case "k", "up":
		m.viewport.ScrollUp(1)
	case "g":
		m.viewport.GotoTop()
	case "G":
		m.viewport.GotoBottom()
	case "ctrl+x", "esc":
		m.visible = false
		return m, func() tea.Msg { return CloseMsg{} }
	}
	return m, nil
}

func (m *Model) setLevel(l log.Level) {
	m.minLevel = l
	m.refresh()
}

func (m Model) View() string {
	if !m.visible {
		return ""
	}
	w := m.boxWidth()
	divider := lipgloss.NewStyle().Foreground(styles.OverlayBorderColor).Render(strings.Repeat("─", w))
	title := lipgloss.NewStyle().Bold(true).Foreground(styles.OverlayTitleColor).PaddingLeft(1).Render("Logs")

	body := strings.Join([]string{title, divider, m.viewport.View(), divider, m.footer()}, "\n")
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.OverlayBorderColor).
		Width(w).
		Render(body)
}

// Overlay centers the panel over bg.
func (m Model) Overlay(bg string) string {
	if !m.visible {
		return bg
	}
	return overlay.Place(overlay.Config{Width: m.width, Height: m.height, Anchor: overlay.Center}, m.View(), bg)
}

func (m *Model) refresh() {
	if m.width == 0 || m.height == 0 {
		return
	}
	rows := max(min(maxRows, m.height-chromeRows), minRows)
	width := m.boxWidth() - 2

	// Keep the reader pinned to the tail unless they scrolled up.
	follow := m.viewport.Height == 0 || m.viewport.AtBottom()
	m.viewport.Width = width
	m.viewport.Height = rows
	m.viewport.SetContent(m.render(width))
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) render(width int) string {
	lines := m.Lines()
	if len(lines) == 0 {
		return lipgloss.NewStyle().Foreground(styles.TextMutedColor).Italic(true).Render("No logs to display")
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if ansi.StringWidth(l) > width {
			l = ansi.Truncate(l, width, "...")
		}
		out[i] = lipgloss.NewStyle().Foreground(levelColor(levelOf(l))).Render(l)
	}
	return strings.Join(out, "\n")
}

func (m Model) footer() string {
	hint := lipgloss.NewStyle().Foreground(styles.TextMutedColor)
	active := lipgloss.NewStyle().Foreground(styles.TextPrimaryColor).Bold(true)

	parts := []string{hint.Render("[c] Clear")}
	for _, f := range []struct {
		level log.Level
		label string
	}{
		{log.LevelDebug, "[d] Debug"},
		{log.LevelInfo, "[i] Info"},
		{log.LevelWarn, "[w] Warn"},
		{log.LevelError, "[e] Error"},
	} {
		if f.level == m.minLevel {
			parts = append(parts, active.Render(f.label))
		} else {
			parts = append(parts, hint.Render(f.label))
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) boxWidth() int {
	return max(min(m.width-4, maxWidth), minWidth)
}

// levelOf reads the "[LEVEL]" tag the log package writes. Untagged lines
// count as errors so they are never filtered out.
func levelOf(line string) log.Level {
	for _, l := range []log.Level{log.LevelError, log.LevelWarn, log.LevelInfo, log.LevelDebug} {
		if strings.Contains(line, "["+l.String()+"]") {
			return l
		}
	}
	return log.LevelError
}

func levelColor(l log.Level) lipgloss.TerminalColor {
	switch l {
	case log.LevelError:
		return styles.LogErrorColor
	case log.LevelWarn:
		return styles.LogWarnColor
	case log.LevelInfo:
		return styles.LogInfoColor
	default:
		return styles.LogDebugColor
	}
}
