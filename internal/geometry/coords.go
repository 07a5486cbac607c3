// Package geometry converts annotation shapes to polygon rings and runs the
// boolean operations built on them: merge, split, hull, simplification and
// rasterization. Everything here is pure.
package geometry

import (
	"math"

	"github.com/starford/annota/internal/models"
)

// Coordinates is a set of implicitly closed rings. Rings are treated as
// independent regions; holes are not represented.
type Coordinates [][]models.Point

// Bounds returns the box around every ring.
func (c Coordinates) Bounds() models.Bounds {
	var all []models.Point
	for _, ring := range c {
		all = append(all, ring...)
	}
	return models.BoundsOf(all...)
}

// ToPolygonCoordinates returns the rings of an area shape. Points, circles,
// ellipses, lines and open strokes have no polygon form and report false, as
// do rings with fewer than three distinct vertices.
func ToPolygonCoordinates(a models.Annotation) (Coordinates, bool) {
	if a.Shape == nil {
		return nil, false
	}
	coords := models.Visit[Coordinates](a.Shape, ringVisitor{})
	return coords, len(coords) > 0
}

type ringVisitor struct{}

func (ringVisitor) VisitPoint(models.PointShape) Coordinates { return nil }
func (ringVisitor) VisitCircle(models.Circle) Coordinates { return nil }
func (ringVisitor) VisitEllipse(models.Ellipse) Coordinates { return nil }
func (ringVisitor) VisitLine(models.Line) Coordinates { return nil }

func (ringVisitor) VisitRectangle(s models.Rectangle) Coordinates {
	return rings(s.Corners())
}

func (ringVisitor) VisitImageRegion(s models.ImageRegion) Coordinates {
	return rings(s.Rect().Corners())
}

func (ringVisitor) VisitPolygon(s models.Polygon) Coordinates {
	return rings(s.Points)
}

func (ringVisitor) VisitFreehand(s models.Freehand) Coordinates {
	if !s.Closed {
		return nil
	}
	return rings(s.Points)
}

func (ringVisitor) VisitPath(s models.Path) Coordinates {
	if !s.Closed {
		return nil
	}
	return rings(s.Flatten())
}

func (ringVisitor) VisitMultiPolygon(s models.MultiPolygon) Coordinates {
	return rings(s.Polygons...)
}

// rings copies every usable ring, dropping a repeated closing vertex.
func rings(in ...[]models.Point) Coordinates {
	var out Coordinates
	for _, r := range in {
		ring := normalizeRing(r)
		if ring != nil {
			out = append(out, ring)
		}
	}
	return out
}

func normalizeRing(r []models.Point) []models.Point {
	ring := make([]models.Point, 0, len(r))
	for _, p := range r {
		if len(ring) > 0 && ring[len(ring)-1] == p {
			continue
		}
		ring = append(ring, p)
	}
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 || RingArea(ring) == 0 {
		return nil
	}
	return ring
}

// RingArea returns the signed shoelace area of an implicitly closed ring.
// Counter-clockwise rings are positive in a y-up frame.
func RingArea(ring []models.Point) float64 {
	var sum float64
	for i := range ring {
		j := (i + 1) % len(ring)
		sum += ring[i].Cross(ring[j])
	}
	return sum / 2
}

// Area returns the total unsigned area of the rings.
func Area(c Coordinates) float64 {
	var total float64
	for _, ring := range c {
		total += math.Abs(RingArea(ring))
	}
	return total
}
