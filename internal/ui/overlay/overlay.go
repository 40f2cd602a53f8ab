// Package overlay draws a foreground block over an already rendered frame.
package overlay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Anchor is the point of the frame the foreground is attached to.
type Anchor int

const (
	Center Anchor = iota
	Top
	Bottom
	// TopRight docks side panels such as the cluster list.
	TopRight
	BottomRight
)

// Config describes the frame and where the foreground goes.
type Config struct {
	Width  int
	Height int
	Anchor Anchor
	// MarginX and MarginY keep the foreground off the frame edges.
	// They are ignored on the centered axis.
	MarginX int
	MarginY int
}

// Place splices fg into bg line by line. Styling on both sides is kept;
// cells of bg under fg are dropped.
func Place(cfg Config, fg, bg string) string {
	fgLines := strings.Split(fg, "\n")
	bgLines := strings.Split(bg, "\n")
	for len(bgLines) < cfg.Height {
		bgLines = append(bgLines, strings.Repeat(" ", cfg.Width))
	}

	x, y := origin(cfg, lipgloss.Width(fg), len(fgLines))
	for i, line := range fgLines {
		row := y + i
		if row >= len(bgLines) {
			break
		}
		bgLines[row] = splice(bgLines[row], line, x)
	}
	return strings.Join(bgLines, "\n")
}

func splice(bgLine, fgLine string, x int) string {
	left := ansi.Truncate(bgLine, x, "")
	if w := ansi.StringWidth(left); w < x {
		left += strings.Repeat(" ", x-w)
	}
	var right string
	if end := x + ansi.StringWidth(fgLine); end < ansi.StringWidth(bgLine) {
		right = ansi.TruncateLeft(bgLine, end, "")
	}
	return left + fgLine + right
}

func origin(cfg Config, w, h int) (x, y int) {
	switch cfg.Anchor {
	case Top:
		x, y = (cfg.Width-w)/2, cfg.MarginY
	case Bottom:
		x, y = (cfg.Width-w)/2, cfg.Height-h-cfg.MarginY
	case TopRight:
		x, y = cfg.Width-w-cfg.MarginX, cfg.MarginY
	case BottomRight:
		x, y = cfg.Width-w-cfg.MarginX, cfg.Height-h-cfg.MarginY
	default:
		x, y = (cfg.Width-w)/2, (cfg.Height-h)/2
	}
	return max(x, 0), max(y, 0)
}
