package editor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Laloops/tramagrid/internal/keys"
	"github.com/Laloops/tramagrid/internal/readers"
	"github.com/Laloops/tramagrid/internal/ui/styles"
)

const (
	paletteWidth = 34
	minBodyRows  = 6
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	bodyRows := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), minBodyRows)

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderPalette(bodyRows),
		m.renderSide(max(m.width-paletteWidth, 20), bodyRows),
	)
	view := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)

	view = m.toaster.Overlay(view, m.width, m.height)
	return m.logPanel.Overlay(view)
}

func (m Model) renderHeader() string {
	title := styles.TitleStyle.Render("tramagrid")
	if m.services.ImagePath != "" {
		title += "  " + styles.MutedStyle.Render(filepath.Base(m.services.ImagePath))
	}
	if m.loading {
		title += "  " + styles.MutedStyle.Render("refreshing...")
	}
	if m.err != nil {
		title += "  " + lipgloss.NewStyle().Foreground(styles.StatusErrorColor).Render(m.err.Error())
	}
	return styles.Truncate(title, m.width)
}

func (m Model) renderPalette(rows int) string {
	snap := m.services.App.Session.Snapshot()

	var lines []string
	if len(m.palette) == 0 {
		lines = append(lines, styles.MutedStyle.Render("no colors"))
	}
	// Keep the selection inside the visible window.
	visible := max(rows-2, 1)
	first := max(0, m.selected-visible+1)
	for i := first; i < len(m.palette) && i < first+visible; i++ {
		lines = append(lines, m.paletteLine(i, m.palette[i], snap.ActiveColorIndex, snap.MergeSource, snap.HasMergeSource))
	}
	title := fmt.Sprintf("Palette (%d)", len(m.palette))
	return styles.Panel(strings.Join(lines, "\n"), title, paletteWidth, rows, !m.prompting)
}

func (m Model) paletteLine(row int, e readers.PaletteEntry, active, source int, hasSource bool) string {
	cursor := "  "
	if row == m.selected {
		cursor = "> "
	}
	marks := " "
	switch {
	case hasSource && e.Index == source:
		marks = styles.MergeMarkerStyle.Render("◆")
	case e.Index == active:
		marks = styles.ActiveMarkerStyle.Render("●")
	}
	text := fmt.Sprintf("%3d %s %6d", e.Index, e.Hex, e.Count)
	if row == m.selected {
		text = styles.SelectedStyle.Render(text)
	}
	return cursor + marks + " " + styles.Swatch(e.Hex, 3) + " " + text
}

func (m Model) renderSide(width, rows int) string {
	gridRows := rows
	var clusters string
	if m.showClusters {
		gridRows = max(rows/2, 4)
		clusters = m.renderClusters(width, rows-gridRows)
	}
	grid := styles.Panel(m.gridInfo(), "Grid", width, gridRows, false)
	if clusters == "" {
		return grid
	}
	return lipgloss.JoinVertical(lipgloss.Left, grid, clusters)
}

func (m Model) gridInfo() string {
	var b strings.Builder
	if w, ok := intParam(m.params, "grid_width_cells"); ok {
		fmt.Fprintf(&b, "width     %d cells\n", w)
	}
	if c, ok := intParam(m.params, "max_colors"); ok {
		fmt.Fprintf(&b, "colors    %d max\n", c)
	}
	if z, ok := floatParam(m.params, "zoom"); ok {
		fmt.Fprintf(&b, "zoom      %.2fx\n", z)
	}
	if r, ok := intParam(m.params, "highlighted_row"); ok && r > 0 {
		fmt.Fprintf(&b, "highlight row %d\n", r)
	}
	if m.gridSize > 0 {
		fmt.Fprintf(&b, "image     %.1f KB\n", float64(m.gridSize)/1024)
	}
	fmt.Fprintf(&b, "simplify  %d%%\n", m.simplifyLevel)
	fmt.Fprintf(&b, "cursor    %d,%d ", m.cursorX, m.cursorY)
	if m.pixel == readers.NoPixel {
		b.WriteString(styles.MutedStyle.Render("outside grid"))
	} else if hex := m.hexOf(m.pixel); hex != "" {
		fmt.Fprintf(&b, "%s %s", styles.Swatch(hex, 2), hex)
	} else {
		fmt.Fprintf(&b, "color %d", m.pixel)
	}
	return b.String()
}

func (m Model) renderClusters(width, rows int) string {
	var lines []string
	for _, c := range m.clusters {
		var sw strings.Builder
		for _, idx := range c.Indices {
			sw.WriteString(styles.Swatch(m.hexOf(idx), 2))
		}
		line := fmt.Sprintf("%s %v", sw.String(), c.Indices)
		if c.Spread > 0 {
			line += styles.MutedStyle.Render(fmt.Sprintf(" ±%.0f", c.Spread))
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, styles.MutedStyle.Render("no similar colors"))
	}
	return styles.Panel(strings.Join(lines, "\n"), "Similar colors", width, rows, false)
}

func (m Model) renderFooter() string {
	var parts []string
	if m.prompting {
		parts = append(parts, m.prompt.View()+"  "+m.help.ShortHelpView(keys.Prompt.ShortHelp()))
	}
	parts = append(parts, m.renderStatusBar())
	parts = append(parts, m.help.View(keys.Editor))
	return strings.Join(parts, "\n")
}

func (m Model) renderStatusBar() string {
	snap := m.services.App.Session.Snapshot()

	sid := "no session"
	if snap.ID != "" {
		sid = snap.ID
		if len(sid) > 8 {
			sid = sid[:8]
		}
	}
	segments := []string{sid}
	if hex := m.hexOf(snap.ActiveColorIndex); hex != "" {
		segments = append(segments, "paint "+styles.Swatch(hex, 2)+" "+hex)
	}
	if snap.HasMergeSource {
		segments = append(segments, fmt.Sprintf("merge from %d", snap.MergeSource))
	}
	st := m.services.App.Monitor.Stats()
	segments = append(segments, fmt.Sprintf("cmd %d %.0fms  query %d %.0fms  failed %d",
		st.Commands, st.CommandAvgMs, st.Queries, st.QueryAvgMs, st.Failures))

	return styles.StatusBarStyle.Width(m.width).Render(strings.Join(segments, " │ "))
}

// hexOf finds a palette index in the current snapshot.
func (m Model) hexOf(index int) string {
	for _, e := range m.palette {
		if e.Index == index {
			return e.Hex
		}
	}
	return ""
}
