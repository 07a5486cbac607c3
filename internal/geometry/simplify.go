package geometry

import "github.com/starford/annota/internal/models"

// Simplify reduces a polyline with Douglas-Peucker. Vertices closer than
// tolerance to the chord of their span are removed; the endpoints are
// always kept.
func Simplify(pts []models.Point, tolerance float64) []models.Point {
	if len(pts) < 3 || tolerance <= 0 {
		return append([]models.Point(nil), pts...)
	}
	keep := make([]bool, len(pts))
	keep[0], keep[len(pts)-1] = true, true
	douglasPeucker(pts, 0, len(pts)-1, tolerance, keep)

	out := make([]models.Point, 0, len(pts))
	for i, p := range pts {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

func douglasPeucker(pts []models.Point, first, last int, tolerance float64, keep []bool) {
	if last-first < 2 {
		return
	}
	idx, dmax := -1, tolerance
	for i := first + 1; i < last; i++ {
		if d := models.SegmentDistance(pts[i], pts[first], pts[last]); d > dmax {
			idx, dmax = i, d
		}
	}
	if idx < 0 {
		return
	}
	keep[idx] = true
	douglasPeucker(pts, first, idx, tolerance, keep)
	douglasPeucker(pts, idx, last, tolerance, keep)
}
