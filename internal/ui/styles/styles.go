// Package styles holds the Lip Gloss colors and styles of the editor.
package styles

import (
	"regexp"

	"github.com/charmbracelet/lipgloss"
)

var (
	TextPrimaryColor   = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#E6E6E6"}
	TextSecondaryColor = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BBBBBB"}
	TextMutedColor     = lipgloss.AdaptiveColor{Light: "#888888", Dark: "#777777"}

	AccentPrimaryColor = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#5C5C5C"}
	BorderFocusColor   = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}

	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"}
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}

	ToastBorderSuccessColor = StatusSuccessColor
	ToastBorderErrorColor   = StatusErrorColor
	ToastBorderInfoColor    = BorderFocusColor
	ToastBorderWarnColor    = StatusWarningColor

	OverlayTitleColor  = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#C9C9C9"}
	OverlayBorderColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#8C8C8C"}

	// Log levels.
	LogDebugColor = TextMutedColor
	LogInfoColor  = BorderFocusColor
	LogWarnColor  = StatusWarningColor
	LogErrorColor = StatusErrorColor
)

var (
	TitleStyle = lipgloss.NewStyle().Foreground(AccentPrimaryColor).Bold(true)

	MutedStyle = lipgloss.NewStyle().Foreground(TextMutedColor)

	SelectedStyle = lipgloss.NewStyle().Foreground(TextPrimaryColor).Bold(true)

	// ActiveMarkerStyle flags the palette row used for painting.
	ActiveMarkerStyle = lipgloss.NewStyle().Foreground(StatusSuccessColor).Bold(true)

	// MergeMarkerStyle flags the pending merge source.
	MergeMarkerStyle = lipgloss.NewStyle().Foreground(StatusWarningColor).Bold(true)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextSecondaryColor).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(StatusErrorColor).
			Bold(true).
			Padding(1, 2)
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Swatch renders width cells filled with hex. Invalid colors render as
// plain question marks so a bad palette entry stays visible.
func Swatch(hex string, width int) string {
	if width < 1 {
		return ""
	}
	cells := make([]byte, width)
	for i := range cells {
		cells[i] = ' '
	}
	if !hexColor.MatchString(hex) {
		for i := range cells {
			cells[i] = '?'
		}
		return MutedStyle.Render(string(cells))
	}
	return lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render(string(cells))
}
