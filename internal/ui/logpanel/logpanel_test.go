package logpanel

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Laloops/tramagrid/internal/log"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+x":
		return tea.KeyMsg{Type: tea.KeyCtrlX}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func filled() Model {
	m := New(0)
	m.Append("2026-10-16T10:00:00 [DEBUG] [ui] redraw\n")
	m.Append("2026-10-16T10:00:01 [INFO] [command] command applied type=paint_cell")
	m.Append("2026-10-16T10:00:02 [WARN] [transport] slow command")
	m.Append("2026-10-16T10:00:03 [ERROR] [reader] palette failed")
	return m
}

func TestAppend_BoundedBuffer(t *testing.T) {
	m := New(3)
	for i := 0; i < 5; i++ {
		m.Append(fmt.Sprintf("[INFO] line %d", i))
	}
	m.Append("\n")

	assert.Equal(t, []string{"[INFO] line 2", "[INFO] line 3", "[INFO] line 4"}, m.Lines())
}

func TestLevelFilter(t *testing.T) {
	m := filled()
	m.Toggle()
	require.Len(t, m.Lines(), 4)

	m, _ = m.Update(key("w"))
	assert.Equal(t, log.LevelWarn, m.MinLevel())
	assert.Len(t, m.Lines(), 2)

	m, _ = m.Update(key("e"))
	assert.Len(t, m.Lines(), 1)

	m, _ = m.Update(key("d"))
	assert.Len(t, m.Lines(), 4)

	m, _ = m.Update(key("c"))
	assert.Empty(t, m.Lines())
}

func TestUpdate_IgnoredWhenHidden(t *testing.T) {
	m := filled()
	m, cmd := m.Update(key("c"))
	assert.Nil(t, cmd)
	assert.Len(t, m.Lines(), 4)
}

func TestClose(t *testing.T) {
	for _, k := range []string{"esc", "ctrl+x"} {
		m := filled()
		m.Toggle()
		m, cmd := m.Update(key(k))
		assert.False(t, m.Visible())
		require.NotNil(t, cmd)
		assert.IsType(t, CloseMsg{}, cmd())
	}
}

func TestView(t *testing.T) {
	m := filled()
	assert.Empty(t, m.View())
	assert.Equal(t, "bg", m.Overlay("bg"))

	m.SetSize(100, 30)
	m.Toggle()
	view := m.View()
	assert.Contains(t, view, "Logs")
	assert.Contains(t, view, "palette failed")
	assert.Contains(t, view, "[w] Warn")

	m, _ = m.Update(key("c"))
	assert.Contains(t, m.View(), "No logs to display")
}

func TestLevelOf_UntaggedShown(t *testing.T) {
	assert.Equal(t, log.LevelError, levelOf("panic: something"))
	assert.Equal(t, log.LevelDebug, levelOf("x [DEBUG] y"))
}
