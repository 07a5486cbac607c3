package geometry

import (
	polyclip "github.com/ctessum/polyclip-go"

	"github.com/starford/annota/internal/models"
)

func toClip(c Coordinates) polyclip.Polygon {
	out := make(polyclip.Polygon, 0, len(c))
	for _, ring := range c {
		contour := make(polyclip.Contour, len(ring))
		for i, p := range ring {
			contour[i] = polyclip.Point{X: p.X, Y: p.Y}
		}
		out = append(out, contour)
	}
	return out
}

func fromContour(c polyclip.Contour) []models.Point {
	ring := make([]models.Point, len(c))
	for i, p := range c {
		ring[i] = models.Pt(p.X, p.Y)
	}
	return ring
}

func union(a, b Coordinates) Coordinates {
	return fromClip(toClip(a).Construct(polyclip.UNION, toClip(b)))
}

func difference(a, b Coordinates) Coordinates {
	return fromClip(toClip(a).Construct(polyclip.DIFFERENCE, toClip(b)))
}

// fromClip converts a clipping result back to rings, dropping degenerate
// contours.
func fromClip(p polyclip.Polygon) Coordinates {
	var out Coordinates
	for _, c := range p {
		if ring := normalizeRing(fromContour(c)); ring != nil {
			out = append(out, ring)
		}
	}
	return out
}

// outerRings returns the rings not nested inside another ring an odd number
// of times. Clipping results list holes as ordinary contours.
func outerRings(c Coordinates) Coordinates {
	var out Coordinates
	for i, ring := range c {
		probe := interiorProbe(ring)
		depth := 0
		for j, other := range c {
			if i != j && models.PointInRing(probe, other) {
				depth++
			}
		}
		if depth%2 == 0 {
			out = append(out, ring)
		}
	}
	return out
}

// interiorProbe returns a point just inside the ring near its first edge, so
// rings that share a vertex with their container still classify correctly.
func interiorProbe(ring []models.Point) models.Point {
	a, b := ring[0], ring[1]
	mid := a.Add(b).Mul(0.5)
	edge := b.Sub(a)
	n := models.Pt(-edge.Y, edge.X).Mul(1e-6 / edge.Length())
	if RingArea(ring) < 0 {
		n = n.Mul(-1)
	}
	return mid.Add(n)
}
