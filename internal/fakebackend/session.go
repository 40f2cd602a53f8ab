package fakebackend

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"io"
	"math"
	"sort"
	"sync"
)

// Defaults for a new session.
const (
	DefaultGridWidthCells = 130
	DefaultCellSize       = 22
	DefaultMaxColors      = 64
	DefaultClusterRadius  = 60.0

	MinZoom = 0.4
	MaxZoom = 8.0

	maxHistory = 50
)

// Errors returned by session operations. The server maps them to 400.
var (
	ErrBadImage      = errors.New("unsupported image")
	ErrNoImage       = errors.New("no image loaded")
	ErrNotGenerated  = errors.New("grid not generated")
	ErrBadIndex      = errors.New("invalid color index")
	ErrLastColor     = errors.New("no other color to merge into")
	ErrOutOfBounds   = errors.New("cell outside the grid")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrSameColor     = errors.New("source and target colors are the same")
)

// Params are the generation and display parameters of a session.
type Params struct {
	MaxColors      int     `json:"max_colors"`
	GridWidthCells int     `json:"grid_width_cells"`
	Brightness     float64 `json:"brightness"`
	Contrast       float64 `json:"contrast"`
	Zoom           float64 `json:"zoom"`
	HighlightedRow int     `json:"highlighted_row"`
	CellSize       int     `json:"cell_size"`
}

// ParamsUpdate carries optional parameter changes; nil fields are kept.
type ParamsUpdate struct {
	MaxColors      *int     `json:"max_colors"`
	GridWidthCells *int     `json:"grid_width_cells"`
	Brightness     *float64 `json:"brightness"`
	Contrast       *float64 `json:"contrast"`
	Zoom           *float64 `json:"zoom"`
	HighlightedRow *int     `json:"highlighted_row"`
}

// PaletteEntry is one used palette color with its cell count.
type PaletteEntry struct {
	Index int    `json:"index"`
	Hex   string `json:"hex"`
	Count int    `json:"count"`
}

// Cluster is a group of palette indices whose colors lie close together.
type Cluster struct {
	Indices []int   `json:"indices"`
	Hex     string  `json:"hex"`
	Spread  float64 `json:"spread"`
}

type snapshot struct {
	cells   []int
	palette Palette
	custom  Palette
}

// Session is the editing state of one client session.
type Session struct {
	mu sync.Mutex

	original image.Image
	params   Params

	generated bool
	cells     []int
	width     int
	height    int
	palette   Palette
	custom    Palette

	history []snapshot
}

func newSession() *Session {
	return &Session{
		params: Params{
			MaxColors:      DefaultMaxColors,
			GridWidthCells: DefaultGridWidthCells,
			Brightness:     1,
			Contrast:       1,
			Zoom:           1,
			HighlightedRow: -1,
			CellSize:       DefaultCellSize,
		},
		palette: Palette{},
		custom:  Palette{},
	}
}

// Load decodes an uploaded PNG, JPEG or GIF as the source image.
func (s *Session) Load(r io.Reader) error {
	img, _, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.original = img
	return nil
}

// Generate resamples and quantizes the source image. User color overrides
// survive regeneration. Undo history is reset.
func (s *Session) Generate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.original == nil {
		return ErrNoImage
	}
	colors, w, h := resample(s.original, s.params.GridWidthCells, s.params.Brightness, s.params.Contrast)
	if len(colors) == 0 {
		return ErrNoImage
	}
	cells, palette := quantize(colors, s.params.MaxColors)
	for idx := range palette {
		if c, ok := s.custom[idx]; ok {
			palette[idx] = c
		}
	}

	s.cells, s.width, s.height = cells, w, h
	s.palette = palette
	s.generated = true
	s.history = nil
	return nil
}

// Params returns the current parameters.
func (s *Session) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// UpdateParams applies the non-nil fields of u. Zoom is clamped.
func (s *Session) UpdateParams(u ParamsUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.MaxColors != nil {
		s.params.MaxColors = *u.MaxColors
	}
	if u.GridWidthCells != nil {
		s.params.GridWidthCells = *u.GridWidthCells
	}
	if u.Brightness != nil {
		s.params.Brightness = *u.Brightness
	}
	if u.Contrast != nil {
		s.params.Contrast = *u.Contrast
	}
	if u.Zoom != nil {
		s.params.Zoom = math.Max(MinZoom, math.Min(*u.Zoom, MaxZoom))
	}
	if u.HighlightedRow != nil {
		s.params.HighlightedRow = *u.HighlightedRow
	}
}

// PaletteInfo lists the used colors, most frequent first. Empty before the
// grid is generated.
func (s *Session) PaletteInfo() []PaletteEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage := make(map[int]int)
	for _, idx := range s.cells {
		if _, ok := s.palette[idx]; ok {
			usage[idx]++
		}
	}
	out := make([]PaletteEntry, 0, len(usage))
	for idx, n := range usage {
		out = append(out, PaletteEntry{Index: idx, Hex: s.palette[idx].Hex(), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// GridPNG renders the grid with the current highlight and zoom.
func (s *Session) GridPNG() ([]byte, error) {
	s.mu.Lock()
	if !s.generated {
		s.mu.Unlock()
		return nil, ErrNotGenerated
	}
	img := renderGrid(s.cells, s.width, s.height, s.palette, s.params.CellSize)
	if row := s.params.HighlightedRow; row >= 1 && row <= s.height {
		highlightRow(img, row, s.width, s.height, s.params.CellSize)
	}
	zoom := s.params.Zoom
	s.mu.Unlock()

	if zoom != 1 {
		img = scaleNearest(img, zoom)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode grid: %w", err)
	}
	return buf.Bytes(), nil
}

// ReplaceColor recolors index. The override survives regeneration.
func (s *Session) ReplaceColor(index int, hex string) error {
	c, err := ParseHex(hex)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.palette[index]; !ok {
		return fmt.Errorf("%w: %d", ErrBadIndex, index)
	}
	s.push()
	s.custom[index] = c
	s.palette[index] = c
	return nil
}

// DeleteColor moves the cells of index to the nearest other color and
// renumbers the palette densely.
func (s *Session) DeleteColor(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.palette[index]
	if !ok {
		return fmt.Errorf("%w: %d", ErrBadIndex, index)
	}
	nearest, ok := s.palette.nearest(c, index)
	if !ok {
		return ErrLastColor
	}
	s.push()
	s.fold(index, nearest)
	return nil
}

// Merge moves the cells of from onto to and drops from.
func (s *Session) Merge(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.palette[from]; !ok {
		return fmt.Errorf("%w: %d", ErrBadIndex, from)
	}
	if _, ok := s.palette[to]; !ok {
		return fmt.Errorf("%w: %d", ErrBadIndex, to)
	}
	if from == to {
		return ErrSameColor
	}
	s.push()
	s.fold(from, to)
	return nil
}

func (s *Session) fold(from, to int) {
	for i, idx := range s.cells {
		if idx == from {
			s.cells[i] = to
		}
	}
	delete(s.palette, from)
	delete(s.custom, from)
	s.reindex()
}

func (s *Session) reindex() {
	mapping := make(map[int]int, len(s.palette))
	next := make(Palette, len(s.palette))
	for n, old := range s.palette.Indices() {
		mapping[old] = n
		next[n] = s.palette[old]
	}
	for i, old := range s.cells {
		s.cells[i] = mapping[old]
	}
	custom := make(Palette, len(s.custom))
	for k, v := range s.custom {
		if n, ok := mapping[k]; ok {
			custom[n] = v
		}
	}
	s.palette = next
	s.custom = custom
}

// Simplify merges similar colors. Intensity runs from 0 (keep detail) to
// 100 (maximum merging).
func (s *Session) Simplify(intensity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.palette) == 0 {
		return nil
	}
	s.push()
	s.simplify(intensity)
	return nil
}

// SimplifyBW picks a simplify intensity from the luminance spread of the
// palette.
func (s *Session) SimplifyBW() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.palette) == 0 {
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range s.palette {
		l := luminance(c)
		lo = math.Min(lo, l)
		hi = math.Max(hi, l)
	}
	intensity := bwIntensity(hi - lo)
	s.push()
	s.simplify(intensity)
	return nil
}

func bwIntensity(amplitude float64) int {
	switch {
	case amplitude < 30:
		return 8
	case amplitude < 80:
		return 20
	default:
		return 35
	}
}

func (s *Session) simplify(intensity int) {
	threshold := float64(intensity) / 100 * 300
	groups := groupByDistance(s.palette, threshold)

	target := max(1, 1+int(float64(len(s.palette))*float64(100-intensity)/100))
	if len(groups) > target {
		sort.SliceStable(groups, func(i, j int) bool { return len(groups[i]) < len(groups[j]) })
		for len(groups) > target {
			small := groups[0]
			groups = groups[1:]
			avg := average(colorsOf(small))
			best, bestDist := 0, math.Inf(1)
			for i, g := range groups {
				if d := distance(avg, g[0].color); d < bestDist {
					best, bestDist = i, d
				}
			}
			groups[best] = append(groups[best], small...)
		}
	}

	oldToNew := make(map[int]int, len(s.palette))
	next := make(Palette, len(groups))
	for n, g := range groups {
		next[n] = average(colorsOf(g))
		for _, m := range g {
			oldToNew[m.index] = n
		}
	}
	for i, old := range s.cells {
		if n, ok := oldToNew[old]; ok {
			s.cells[i] = n
			continue
		}
		n, _ := next.nearest(s.palette[old], -1)
		s.cells[i] = n
	}
	custom := make(Palette, len(s.custom))
	for k, v := range s.custom {
		if n, ok := oldToNew[k]; ok {
			custom[n] = v
		}
	}
	s.palette = next
	s.custom = custom
}

// Paint sets one cell to index.
func (s *Session) Paint(x, y, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.generated {
		return ErrNotGenerated
	}
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}
	if _, ok := s.palette[index]; !ok {
		return fmt.Errorf("%w: %d", ErrBadIndex, index)
	}
	s.push()
	s.cells[y*s.width+x] = index
	return nil
}

// ReplaceInRegion recolors cells of from to to inside the rectangle, clipped
// to the grid. A rectangle outside the grid changes nothing.
func (s *Session) ReplaceInRegion(x, y, w, h, from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.generated {
		return ErrNotGenerated
	}
	if _, ok := s.palette[to]; !ok {
		return fmt.Errorf("%w: %d", ErrBadIndex, to)
	}
	r := image.Rect(x, y, x+w, y+h).Intersect(image.Rect(0, 0, s.width, s.height))
	if r.Empty() {
		return nil
	}
	s.push()
	for cy := r.Min.Y; cy < r.Max.Y; cy++ {
		for cx := r.Min.X; cx < r.Max.X; cx++ {
			if i := cy*s.width + cx; s.cells[i] == from {
				s.cells[i] = to
			}
		}
	}
	return nil
}

// PixelIndex returns the palette index at a cell.
func (s *Session) PixelIndex(x, y int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.generated || x < 0 || y < 0 || x >= s.width || y >= s.height {
		return 0, false
	}
	return s.cells[y*s.width+x], true
}

// Clusters suggests groups of at least two colors within radius of each
// other, largest first.
func (s *Session) Clusters(radius float64) []Cluster {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Cluster{}
	for _, g := range groupByDistance(s.palette, radius) {
		if len(g) < 2 {
			continue
		}
		cl := Cluster{Indices: make([]int, len(g)), Hex: average(colorsOf(g)).Hex()}
		for i, m := range g {
			cl.Indices[i] = m.index
			cl.Spread = math.Max(cl.Spread, distance(m.color, g[0].color))
		}
		out = append(out, cl)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Indices) > len(out[j].Indices) })
	return out
}

// Undo restores the state before the last edit.
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return ErrNothingToUndo
	}
	last := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.cells, s.palette, s.custom = last.cells, last.palette, last.custom
	return nil
}

// push records the current state. Callers hold mu.
func (s *Session) push() {
	s.history = append(s.history, snapshot{
		cells:   append([]int(nil), s.cells...),
		palette: s.palette.clone(),
		custom:  s.custom.clone(),
	})
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
}
