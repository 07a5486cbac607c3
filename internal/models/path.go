package models

// Smoothing selects how a Path interpolates between its vertices.
type Smoothing string

const (
	SmoothingNone       Smoothing = "none"
	SmoothingCatmullRom Smoothing = "catmull-rom"
	SmoothingBezier     Smoothing = "bezier"
)

// curveSteps is the number of line segments each curved span is flattened into.
const curveSteps = 16

// Handle holds the optional bezier control points around one vertex.
type Handle struct {
	In  *Point `json:"in,omitempty"`
	Out *Point `json:"out,omitempty"`
}

// Path is an editable vertex list. Handles, when present, align with Points
// by index. Geometry queries operate on the flattened polyline.
type Path struct {
	Points    []Point   `json:"points"`
	Closed    bool      `json:"closed"`
	Handles   []Handle  `json:"handles,omitempty"`
	Smoothing Smoothing `json:"smoothing,omitempty"`
}

func (s Path) Kind() Kind { return KindPath }
func (s Path) Bounds() Bounds { return BoundsOf(s.Flatten()...) }
func (s Path) Contains(p Point, tolerance float64) bool {
	pts := s.Flatten()
	if s.Closed {
		return ringHit(p, pts, tolerance)
	}
	return PolylineDistance(p, pts, false) <= tolerance
}
func (s Path) clone() Shape {
	out := Path{Points: clonePoints(s.Points), Closed: s.Closed, Smoothing: s.Smoothing}
	if s.Handles != nil {
		out.Handles = make([]Handle, len(s.Handles))
		for i, h := range s.Handles {
			out.Handles[i] = Handle{In: clonePointPtr(h.In), Out: clonePointPtr(h.Out)}
		}
	}
	return out
}

// Flatten returns the polyline the path describes. A closed path does not
// repeat its first vertex.
func (s Path) Flatten() []Point {
	n := len(s.Points)
	if n < 2 || !s.curved() {
		return clonePoints(s.Points)
	}
	spans := n - 1
	if s.Closed {
		spans = n
	}
	out := make([]Point, 0, spans*curveSteps+1)
	out = append(out, s.Points[0])
	for i := 0; i < spans; i++ {
		j := (i + 1) % n
		c1, c2 := s.controls(i, j)
		for step := 1; step <= curveSteps; step++ {
			t := float64(step) / curveSteps
			out = append(out, cubicAt(s.Points[i], c1, c2, s.Points[j], t))
		}
	}
	if s.Closed {
		// The last span ends on the first vertex.
		out = out[:len(out)-1]
	}
	return out
}

func (s Path) curved() bool {
	switch s.Smoothing {
	case SmoothingCatmullRom:
		return true
	case SmoothingBezier:
		return len(s.Handles) > 0
	}
	for _, h := range s.Handles {
		if h.In != nil || h.Out != nil {
			return true
		}
	}
	return false
}

// controls returns the cubic control points for the span from vertex i to j.
func (s Path) controls(i, j int) (Point, Point) {
	p1, p2 := s.Points[i], s.Points[j]
	if s.Smoothing == SmoothingCatmullRom {
		p0, p3 := s.neighbour(i, -1), s.neighbour(j, 1)
		return p1.Add(p2.Sub(p0).Mul(1.0 / 6)), p2.Sub(p3.Sub(p1).Mul(1.0 / 6))
	}
	c1, c2 := p1, p2
	if i < len(s.Handles) && s.Handles[i].Out != nil {
		c1 = *s.Handles[i].Out
	}
	if j < len(s.Handles) && s.Handles[j].In != nil {
		c2 = *s.Handles[j].In
	}
	return c1, c2
}

func (s Path) neighbour(i, dir int) Point {
	n := len(s.Points)
	k := i + dir
	if s.Closed {
		return s.Points[(k+n)%n]
	}
	if k < 0 || k >= n {
		return s.Points[i]
	}
	return s.Points[k]
}

func cubicAt(p0, p1, p2, p3 Point, t float64) Point {
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	c := 3 * mt * t * t
	d := t * t * t
	return Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

func clonePointPtr(p *Point) *Point {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
