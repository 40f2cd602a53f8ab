package fakebackend

import (
	"image"
	"image/color"
	"image/draw"
	"sort"
)

const (
	gridMargin   = 50
	gridTrailing = 20
	majorEvery   = 10
	overlayAlpha = 140
)

var (
	gridLineColor  = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	majorLineColor = color.RGBA{A: 255}
)

func rgbAt(img image.Image, x, y int) RGB {
	r, g, b, _ := img.At(x, y).RGBA()
	return RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
}

// resample box-averages img down (or up) to width cells, keeping the aspect
// ratio, and applies brightness and contrast.
func resample(img image.Image, width int, brightness, contrast float64) (cells []RGB, w, h int) {
	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == 0 || sh == 0 || width <= 0 {
		return nil, 0, 0
	}
	w = width
	h = sh * w / sw
	if h < 1 {
		h = 1
	}

	cells = make([]RGB, w*h)
	for y := 0; y < h; y++ {
		y0 := y * sh / h
		y1 := max((y+1)*sh/h, y0+1)
		for x := 0; x < w; x++ {
			x0 := x * sw / w
			x1 := max((x+1)*sw/w, x0+1)
			var r, g, bl, n int
			for sy := y0; sy < y1; sy++ {
				for sx := x0; sx < x1; sx++ {
					c := rgbAt(img, b.Min.X+sx, b.Min.Y+sy)
					r += int(c.R)
					g += int(c.G)
					bl += int(c.B)
					n++
				}
			}
			cells[y*w+x] = RGB{R: uint8(r / n), G: uint8(g / n), B: uint8(bl / n)}
		}
	}

	enhance(cells, brightness, contrast)
	return cells, w, h
}

// enhance scales toward black for brightness and toward the mean gray for
// contrast.
func enhance(cells []RGB, brightness, contrast float64) {
	if brightness != 1 {
		for i, c := range cells {
			cells[i] = RGB{
				R: clamp8(float64(c.R) * brightness),
				G: clamp8(float64(c.G) * brightness),
				B: clamp8(float64(c.B) * brightness),
			}
		}
	}
	if contrast != 1 && len(cells) > 0 {
		var sum float64
		for _, c := range cells {
			sum += luminance(c)
		}
		mean := float64(int(sum/float64(len(cells)) + 0.5))
		for i, c := range cells {
			cells[i] = RGB{
				R: clamp8(mean + (float64(c.R)-mean)*contrast),
				G: clamp8(mean + (float64(c.G)-mean)*contrast),
				B: clamp8(mean + (float64(c.B)-mean)*contrast),
			}
		}
	}
}

// quantize picks up to maxColors colors by popularity over a 4-bit per
// channel histogram, then maps every cell to its nearest palette color.
func quantize(cells []RGB, maxColors int) (indices []int, palette Palette) {
	if maxColors < 1 {
		maxColors = 1
	}

	type bucket struct {
		key     int
		count   int
		r, g, b int
	}
	buckets := make(map[int]*bucket)
	for _, c := range cells {
		key := int(c.R>>4)<<8 | int(c.G>>4)<<4 | int(c.B>>4)
		bk, ok := buckets[key]
		if !ok {
			bk = &bucket{key: key}
			buckets[key] = bk
		}
		bk.count++
		bk.r += int(c.R)
		bk.g += int(c.G)
		bk.b += int(c.B)
	}

	ranked := make([]*bucket, 0, len(buckets))
	for _, bk := range buckets {
		ranked = append(ranked, bk)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].key < ranked[j].key
	})
	if len(ranked) > maxColors {
		ranked = ranked[:maxColors]
	}

	palette = make(Palette, len(ranked))
	for i, bk := range ranked {
		palette[i] = RGB{R: uint8(bk.r / bk.count), G: uint8(bk.g / bk.count), B: uint8(bk.b / bk.count)}
	}

	indices = make([]int, len(cells))
	for i, c := range cells {
		idx, _ := palette.nearest(c, -1)
		indices[i] = idx
	}
	return indices, palette
}

// renderGrid draws the cell grid with thin separators and a heavy line every
// ten cells.
func renderGrid(cells []int, w, h int, palette Palette, cellSize int) *image.RGBA {
	totalW := gridMargin + w*cellSize + gridTrailing
	totalH := gridMargin + h*cellSize + gridTrailing
	img := image.NewRGBA(image.Rect(0, 0, totalW, totalH))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c, ok := palette[cells[y*w+x]]
			fill := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if ok {
				fill = color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
			}
			px := gridMargin + x*cellSize
			py := gridMargin + y*cellSize
			draw.Draw(img, image.Rect(px, py, px+cellSize, py+cellSize), image.NewUniform(fill), image.Point{}, draw.Src)
			if x < w-1 {
				vline(img, px+cellSize-1, py, py+cellSize, gridLineColor)
			}
			if y < h-1 {
				hline(img, px, px+cellSize, py+cellSize-1, gridLineColor)
			}
		}
	}

	top, bottom := gridMargin, gridMargin+h*cellSize
	left, right := gridMargin, gridMargin+w*cellSize
	for x := majorEvery; x < w; x += majorEvery {
		px := gridMargin + x*cellSize
		for dx := -2; dx <= 0; dx++ {
			vline(img, px+dx, top, bottom, majorLineColor)
		}
	}
	for y := majorEvery; y < h; y += majorEvery {
		py := gridMargin + y*cellSize
		for dy := -2; dy <= 0; dy++ {
			hline(img, left, right, py+dy, majorLineColor)
		}
	}
	return img
}

func vline(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	for y := y0; y < y1; y++ {
		img.SetRGBA(x, y, c)
	}
}

func hline(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	for x := x0; x < x1; x++ {
		img.SetRGBA(x, y, c)
	}
}

// highlightRow darkens every grid row except row (1-based).
func highlightRow(img *image.RGBA, row, w, h, cellSize int) {
	keep := 1 - float64(overlayAlpha)/255
	hy0 := gridMargin + (row-1)*cellSize
	hy1 := hy0 + cellSize
	for y := gridMargin; y < gridMargin+h*cellSize; y++ {
		if y >= hy0 && y < hy1 {
			continue
		}
		for x := gridMargin; x < gridMargin+w*cellSize; x++ {
			c := img.RGBAAt(x, y)
			img.SetRGBA(x, y, color.RGBA{
				R: clamp8(float64(c.R) * keep),
				G: clamp8(float64(c.G) * keep),
				B: clamp8(float64(c.B) * keep),
				A: 255,
			})
		}
	}
}

// scaleNearest resizes img by factor with nearest-neighbor sampling.
func scaleNearest(img *image.RGBA, factor float64) *image.RGBA {
	b := img.Bounds()
	nw := int(float64(b.Dx()) * factor)
	nh := int(float64(b.Dy()) * factor)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, nw, nh))
	for y := 0; y < nh; y++ {
		sy := min(y*b.Dy()/nh, b.Dy()-1)
		for x := 0; x < nw; x++ {
			sx := min(x*b.Dx()/nw, b.Dx()-1)
			out.SetRGBA(x, y, img.RGBAAt(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	return out
}
