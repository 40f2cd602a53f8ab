package fakebackend

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
)

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex formats c as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

var hexPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

var errBadHex = errors.New("color must be #rrggbb")

// ParseHex parses a #rrggbb string.
func ParseHex(s string) (RGB, error) {
	if !hexPattern.MatchString(s) {
		return RGB{}, fmt.Errorf("%w: %q", errBadHex, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", errBadHex, s)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func distance(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func luminance(c RGB) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

// average uses integer division per channel.
func average(colors []RGB) RGB {
	if len(colors) == 0 {
		return RGB{}
	}
	var r, g, b int
	for _, c := range colors {
		r += int(c.R)
		g += int(c.G)
		b += int(c.B)
	}
	n := len(colors)
	return RGB{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n)}
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

// Palette maps a palette index to its color.
type Palette map[int]RGB

// Indices returns the palette indices in ascending order.
func (p Palette) Indices() []int {
	out := make([]int, 0, len(p))
	for idx := range p {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func (p Palette) clone() Palette {
	out := make(Palette, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// nearest returns the index closest to c, skipping ignore. ok is false when
// no other index exists. Ties go to the lowest index.
func (p Palette) nearest(c RGB, ignore int) (idx int, ok bool) {
	best := math.Inf(1)
	for _, i := range p.Indices() {
		if i == ignore {
			continue
		}
		if d := distance(c, p[i]); d < best {
			best = d
			idx = i
			ok = true
		}
	}
	return idx, ok
}

type member struct {
	index int
	color RGB
}

func colorsOf(group []member) []RGB {
	out := make([]RGB, len(group))
	for i, m := range group {
		out[i] = m.color
	}
	return out
}

// groupByDistance puts each color into the first group whose leading color
// lies within threshold, or opens a new group.
func groupByDistance(p Palette, threshold float64) [][]member {
	var groups [][]member
	for _, idx := range p.Indices() {
		c := p[idx]
		placed := false
		for gi := range groups {
			if distance(c, groups[gi][0].color) <= threshold {
				groups[gi] = append(groups[gi], member{index: idx, color: c})
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []member{{index: idx, color: c}})
		}
	}
	return groups
}
