package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	cornerTopLeft     = "╭"
	cornerTopRight    = "╮"
	cornerBottomLeft  = "╰"
	cornerBottomRight = "╯"
	edgeHorizontal    = "─"
	edgeVertical      = "│"
)

// Panel draws content inside a rounded box of exactly width x height cells,
// with title set into the top edge: ╭─ Palette ─────╮
func Panel(content, title string, width, height int, focused bool) string {
	var edge lipgloss.TerminalColor = BorderDefaultColor
	if focused {
		edge = BorderFocusColor
	}
	edgeStyle := lipgloss.NewStyle().Foreground(edge)
	titleStyle := lipgloss.NewStyle().Foreground(OverlayTitleColor).Bold(focused)

	inner := max(width-2, 1)
	rows := max(height-2, 1)

	body := lipgloss.NewStyle().Width(inner).Height(rows).MaxHeight(rows).Render(content)
	lines := strings.Split(body, "\n")

	var b strings.Builder
	b.WriteString(topEdge(title, inner, edgeStyle, titleStyle))
	for i := 0; i < rows; i++ {
		var line string
		if i < len(lines) {
			line = lines[i]
		}
		if w := lipgloss.Width(line); w < inner {
			line += strings.Repeat(" ", inner-w)
		}
		b.WriteString("\n")
		b.WriteString(edgeStyle.Render(edgeVertical) + line + edgeStyle.Render(edgeVertical))
	}
	b.WriteString("\n")
	b.WriteString(edgeStyle.Render(cornerBottomLeft + strings.Repeat(edgeHorizontal, inner) + cornerBottomRight))
	return b.String()
}

func topEdge(title string, inner int, edgeStyle, titleStyle lipgloss.Style) string {
	// "─ " + title + " " + at least one "─"
	if title == "" || inner < 5 {
		return edgeStyle.Render(cornerTopLeft + strings.Repeat(edgeHorizontal, inner) + cornerTopRight)
	}
	title = Truncate(title, inner-4)
	rest := max(inner-3-lipgloss.Width(title), 0)
	return edgeStyle.Render(cornerTopLeft+edgeHorizontal+" ") +
		titleStyle.Render(title) +
		edgeStyle.Render(" "+strings.Repeat(edgeHorizontal, rest)+cornerTopRight)
}

// Truncate shortens s to maxWidth cells, ending in "..." when cut.
func Truncate(s string, maxWidth int) string {
	if maxWidth < 1 {
		return ""
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return strings.Repeat(".", maxWidth)
	}
	var b strings.Builder
	for _, r := range s {
		if lipgloss.Width(b.String()+string(r)) > maxWidth-3 {
			break
		}
		b.WriteRune(r)
	}
	return b.String() + "..."
}
