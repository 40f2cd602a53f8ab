package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanel_Dimensions(t *testing.T) {
	out := Panel("one\ntwo", "Palette", 20, 6, false)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 6)
	for _, l := range lines {
		assert.Equal(t, 20, lipgloss.Width(l))
	}
	assert.Contains(t, lines[0], "Palette")
	assert.Contains(t, lines[1], "one")
	assert.Contains(t, lines[2], "two")
	assert.True(t, strings.HasSuffix(lines[5], cornerBottomRight))
}

func TestPanel_CutsOverflowingContent(t *testing.T) {
	out := Panel("a\nb\nc\nd\ne", "", 10, 4, true)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.NotContains(t, out, "c")
}

func TestPanel_LongTitleTruncated(t *testing.T) {
	out := Panel("", "a very long panel title", 12, 3, false)
	first := strings.Split(out, "\n")[0]
	assert.Equal(t, 12, lipgloss.Width(first))
	assert.Contains(t, first, "...")
}

func TestPanel_NarrowDropsTitle(t *testing.T) {
	out := Panel("", "Title", 5, 3, false)
	assert.NotContains(t, out, "Title")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 3, "..."},
		{"hello", 2, ".."},
		{"hello", 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.max), "%q/%d", tt.in, tt.max)
	}
}

func TestSwatch(t *testing.T) {
	assert.Equal(t, 3, lipgloss.Width(Swatch("#ff0000", 3)))
	assert.Contains(t, Swatch("nope", 2), "??")
	assert.Empty(t, Swatch("#ff0000", 0))
}
