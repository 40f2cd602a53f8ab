// Package toaster shows short-lived notifications at the bottom of the editor.
package toaster

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Laloops/tramagrid/internal/ui/overlay"
	"github.com/Laloops/tramagrid/internal/ui/styles"
)

// Style selects the border color and icon.
type Style int

const (
	StyleSuccess Style = iota
	StyleError
	StyleInfo
	StyleWarn
)

// Model is an immutable toast. Each Show bumps seq so that a dismissal
// scheduled for an older toast leaves a newer one on screen.
type Model struct {
	message string
	style   Style
	visible bool
	seq     int
}

func New() Model {
	return Model{}
}

// Show replaces the current toast.
func (m Model) Show(message string, style Style) Model {
	m.message = message
	m.style = style
	m.visible = true
	m.seq++
	return m
}

func (m Model) Hide() Model {
	m.visible = false
	m.message = ""
	return m
}

func (m Model) Visible() bool {
	return m.visible
}

// Seq identifies the toast currently shown.
func (m Model) Seq() int {
	return m.seq
}

// Update hides the toast when msg dismisses the current one.
func (m Model) Update(msg tea.Msg) Model {
	if d, ok := msg.(DismissMsg); ok && d.Seq == m.seq {
		return m.Hide()
	}
	return m
}

func (m Model) View() string {
	if !m.visible || m.message == "" {
		return ""
	}
	box := lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())

	var icon string
	switch m.style {
	case StyleError:
		box = box.BorderForeground(styles.ToastBorderErrorColor)
		icon = "✗"
	case StyleInfo:
		box = box.BorderForeground(styles.ToastBorderInfoColor)
		icon = "i"
	case StyleWarn:
		box = box.BorderForeground(styles.ToastBorderWarnColor)
		icon = "!"
	default:
		box = box.BorderForeground(styles.ToastBorderSuccessColor)
		icon = "✓"
	}
	return box.Render(icon + " " + m.message)
}

// Overlay draws the toast one line above the bottom edge of bg.
func (m Model) Overlay(bg string, width, height int) string {
	if !m.visible || m.message == "" {
		return bg
	}
	return overlay.Place(overlay.Config{
		Width:   width,
		Height:  height,
		Anchor:  overlay.Bottom,
		MarginY: 1,
	}, m.View(), bg)
}

// DismissMsg hides the toast with the same Seq.
type DismissMsg struct {
	Seq int
}

// Dismiss returns a command that dismisses the current toast after d.
func (m Model) Dismiss(d time.Duration) tea.Cmd {
	seq := m.seq
	return tea.Tick(d, func(time.Time) tea.Msg {
		return DismissMsg{Seq: seq}
	})
}
