package geometry

import (
	"image"
	"image/draw"
	"math"
	"slices"

	"golang.org/x/image/vector"
)

// Rasterize fills the rings into a w×h binary mask with the even-odd rule.
// A pixel is set when its centre lies inside.
func Rasterize(c Coordinates, w, h int) *image.Alpha {
	img := image.NewAlpha(image.Rect(0, 0, w, h))
	var xs []float64
	for y := 0; y < h; y++ {
		sy := float64(y) + 0.5
		xs = xs[:0]
		for _, ring := range c {
			n := len(ring)
			for i, j := 0, n-1; i < n; j, i = i, i+1 {
				a, b := ring[i], ring[j]
				if (a.Y > sy) == (b.Y > sy) {
					continue
				}
				xs = append(xs, a.X+(sy-a.Y)*(b.X-a.X)/(b.Y-a.Y))
			}
		}
		slices.Sort(xs)
		for k := 0; k+1 < len(xs); k += 2 {
			from := pixelEdge(xs[k], w)
			to := pixelEdge(xs[k+1], w)
			row := img.Pix[y*img.Stride:]
			for x := from; x < to; x++ {
				row[x] = 0xff
			}
		}
	}
	return img
}

// pixelEdge returns the first pixel whose centre is at or right of x,
// clamped to [0, w]. Clamping happens on the float so huge or NaN spans
// never reach the int conversion.
func pixelEdge(x float64, w int) int {
	e := math.Ceil(x - 0.5)
	if !(e > 0) {
		return 0
	}
	if e >= float64(w) {
		return w
	}
	return int(e)
}

// Coverage renders the rings into a w×h anti-aliased alpha mask. Edge
// pixels carry their fractional coverage.
func Coverage(c Coordinates, w, h int) *image.Alpha {
	img := image.NewAlpha(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 {
		return img
	}
	r := vector.NewRasterizer(w, h)
	r.DrawOp = draw.Src
	for _, ring := range c {
		if len(ring) < 3 {
			continue
		}
		r.MoveTo(float32(ring[0].X), float32(ring[0].Y))
		for _, p := range ring[1:] {
			r.LineTo(float32(p.X), float32(p.Y))
		}
		r.ClosePath()
	}
	r.Draw(img, img.Bounds(), image.Opaque, image.Point{})
	return img
}
