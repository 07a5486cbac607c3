package models

import "math"

// Kind names a shape variant. The string is the wire "type" tag.
type Kind string

// Shape kinds.
const (
	KindPoint        Kind = "point"
	KindCircle       Kind = "circle"
	KindEllipse      Kind = "ellipse"
	KindRectangle    Kind = "rectangle"
	KindLine         Kind = "line"
	KindPolygon      Kind = "polygon"
	KindFreehand     Kind = "freehand"
	KindPath         Kind = "path"
	KindMultiPolygon Kind = "multipolygon"
	KindImage        Kind = "image-region"
)

// kindImageShort is an older tag for ImageRegion, still accepted on decode.
const kindImageShort Kind = "image"

// Shape is the closed set of annotation geometries. The unexported clone
// method seals the interface to this package.
//
// Bounds is derived from the geometry on every call, so it can never drift
// from the coordinates it describes.
type Shape interface {
	Kind() Kind
	Bounds() Bounds
	// Contains reports whether p hits the shape. Areas match on the interior
	// or within tolerance of an edge; points and open strokes match within
	// tolerance only.
	Contains(p Point, tolerance float64) bool
	clone() Shape
}

// PointShape is a single coordinate.
type PointShape struct {
	Point
}

func (s PointShape) Kind() Kind { return KindPoint }
func (s PointShape) Bounds() Bounds { return PointBounds(s.X, s.Y) }
func (s PointShape) Contains(p Point, tolerance float64) bool {
	return s.Distance(p) <= tolerance
}
func (s PointShape) clone() Shape { return s }

// Circle is a centre and a radius.
type Circle struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
}

func (s Circle) Kind() Kind { return KindCircle }
func (s Circle) Bounds() Bounds {
	r := math.Abs(s.Radius)
	return Bounds{MinX: s.Center.X - r, MinY: s.Center.Y - r, MaxX: s.Center.X + r, MaxY: s.Center.Y + r}
}
func (s Circle) Contains(p Point, tolerance float64) bool {
	return s.Center.Distance(p) <= math.Abs(s.Radius)+tolerance
}
func (s Circle) clone() Shape { return s }

// Ellipse is a centre, two radii, and a rotation in radians.
type Ellipse struct {
	Center   Point   `json:"center"`
	RadiusX  float64 `json:"radiusX"`
	RadiusY  float64 `json:"radiusY"`
	Rotation float64 `json:"rotation,omitempty"`
}

func (s Ellipse) Kind() Kind { return KindEllipse }
func (s Ellipse) Bounds() Bounds {
	rx, ry := math.Abs(s.RadiusX), math.Abs(s.RadiusY)
	sin, cos := math.Sincos(s.Rotation)
	hw := math.Sqrt(rx*rx*cos*cos + ry*ry*sin*sin)
	hh := math.Sqrt(rx*rx*sin*sin + ry*ry*cos*cos)
	return Bounds{MinX: s.Center.X - hw, MinY: s.Center.Y - hh, MaxX: s.Center.X + hw, MaxY: s.Center.Y + hh}
}
func (s Ellipse) Contains(p Point, tolerance float64) bool {
	local := p.Sub(s.Center).Rotate(-s.Rotation)
	rx := math.Abs(s.RadiusX) + tolerance
	ry := math.Abs(s.RadiusY) + tolerance
	if rx == 0 || ry == 0 {
		return local.X == 0 && local.Y == 0
	}
	nx, ny := local.X/rx, local.Y/ry
	return nx*nx+ny*ny <= 1
}
func (s Ellipse) clone() Shape { return s }

// Rectangle is an origin plus width and height. Negative extents are
// accepted and normalised by Bounds.
type Rectangle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s Rectangle) Kind() Kind { return KindRectangle }
func (s Rectangle) Bounds() Bounds {
	return BoundsOf(Pt(s.X, s.Y), Pt(s.X+s.Width, s.Y+s.Height))
}
func (s Rectangle) Contains(p Point, tolerance float64) bool {
	return s.Bounds().Expand(tolerance).ContainsPoint(p)
}
func (s Rectangle) clone() Shape { return s }

// Corners returns the four corners clockwise from the origin.
func (s Rectangle) Corners() []Point {
	b := s.Bounds()
	return []Point{{b.MinX, b.MinY}, {b.MaxX, b.MinY}, {b.MaxX, b.MaxY}, {b.MinX, b.MaxY}}
}

// Line is a single segment.
type Line struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

func (s Line) Kind() Kind { return KindLine }
func (s Line) Bounds() Bounds { return BoundsOf(s.Start, s.End) }
func (s Line) Contains(p Point, tolerance float64) bool {
	return SegmentDistance(p, s.Start, s.End) <= tolerance
}
func (s Line) clone() Shape { return s }

// Polygon is an implicitly closed vertex ring.
type Polygon struct {
	Points []Point `json:"points"`
}

func (s Polygon) Kind() Kind { return KindPolygon }
func (s Polygon) Bounds() Bounds { return BoundsOf(s.Points...) }
func (s Polygon) Contains(p Point, tolerance float64) bool {
	return ringHit(p, s.Points, tolerance)
}
func (s Polygon) clone() Shape { return Polygon{Points: clonePoints(s.Points)} }

// Freehand is a drawn vertex list that may or may not be closed.
type Freehand struct {
	Points []Point `json:"points"`
	Closed bool    `json:"closed"`
}

func (s Freehand) Kind() Kind { return KindFreehand }
func (s Freehand) Bounds() Bounds { return BoundsOf(s.Points...) }
func (s Freehand) Contains(p Point, tolerance float64) bool {
	if s.Closed {
		return ringHit(p, s.Points, tolerance)
	}
	return PolylineDistance(p, s.Points, false) <= tolerance
}
func (s Freehand) clone() Shape {
	return Freehand{Points: clonePoints(s.Points), Closed: s.Closed}
}

// MultiPolygon is a list of independent rings.
type MultiPolygon struct {
	Polygons [][]Point `json:"polygons"`
}

func (s MultiPolygon) Kind() Kind { return KindMultiPolygon }
func (s MultiPolygon) Bounds() Bounds {
	var all []Point
	for _, ring := range s.Polygons {
		all = append(all, ring...)
	}
	return BoundsOf(all...)
}
func (s MultiPolygon) Contains(p Point, tolerance float64) bool {
	for _, ring := range s.Polygons {
		if ringHit(p, ring, tolerance) {
			return true
		}
	}
	return false
}
func (s MultiPolygon) clone() Shape {
	out := make([][]Point, len(s.Polygons))
	for i, ring := range s.Polygons {
		out[i] = clonePoints(ring)
	}
	return MultiPolygon{Polygons: out}
}

// ImageRegion places an external image over a rectangle.
type ImageRegion struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	ImageRef string  `json:"imageRef"`
	Opacity  float64 `json:"opacity"`
}

func (s ImageRegion) Kind() Kind { return KindImage }
func (s ImageRegion) Bounds() Bounds {
	return s.Rect().Bounds()
}
func (s ImageRegion) Contains(p Point, tolerance float64) bool {
	return s.Rect().Contains(p, tolerance)
}
func (s ImageRegion) clone() Shape { return s }

// Rect returns the region as a plain rectangle.
func (s ImageRegion) Rect() Rectangle {
	return Rectangle{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}
}

func ringHit(p Point, ring []Point, tolerance float64) bool {
	if len(ring) < 3 {
		return PolylineDistance(p, ring, false) <= tolerance
	}
	if PointInRing(p, ring) {
		return true
	}
	return PolylineDistance(p, ring, true) <= tolerance
}

// CloneShape returns a deep copy of s. A nil shape stays nil.
func CloneShape(s Shape) Shape {
	if s == nil {
		return nil
	}
	return s.clone()
}
