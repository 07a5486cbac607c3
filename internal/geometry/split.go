package geometry

import (
	"github.com/starford/annota/internal/models"
)

// Split cuts a along line. The line is widened into a band of rectangles,
// one per segment, and the band is subtracted from the target. The split
// fails unless the line has two or more points, a has a polygon form, and
// at least two separate regions remain. Holes in the pieces are dropped.
func Split(a models.Annotation, line []models.Point, opts ...Option) ([]models.Annotation, bool) {
	if len(line) < 2 {
		return nil, false
	}
	target, ok := ToPolygonCoordinates(a)
	if !ok {
		return nil, false
	}
	o := buildOptions(opts)

	band := Buffer(line, o.splitWidth)
	if len(band) == 0 {
		return nil, false
	}
	pieces := outerRings(difference(target, band))
	if len(pieces) < 2 {
		return nil, false
	}

	out := make([]models.Annotation, len(pieces))
	for i, ring := range pieces {
		out[i] = derive(a, o.newID(), ring)
	}
	return out, true
}

// Buffer widens a polyline into the union of one rectangle per segment,
// each width wide and centred on its segment. Zero-length segments are
// skipped.
func Buffer(line []models.Point, width float64) Coordinates {
	half := width / 2
	var band Coordinates
	for i := 1; i < len(line); i++ {
		p, q := line[i-1], line[i]
		d := q.Sub(p)
		l := d.Length()
		if l == 0 {
			continue
		}
		n := models.Pt(-d.Y, d.X).Mul(half / l)
		rect := Coordinates{{p.Add(n), q.Add(n), q.Sub(n), p.Sub(n)}}
		if band == nil {
			band = rect
			continue
		}
		band = union(band, rect)
	}
	return band
}
