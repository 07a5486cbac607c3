package models

import "fmt"

// ShapeVisitor has one method per shape variant. Code that needs
// per-variant behaviour implements it, so a new variant fails to compile
// until every visitor handles it.
type ShapeVisitor[T any] interface {
	VisitPoint(PointShape) T
	VisitCircle(Circle) T
	VisitEllipse(Ellipse) T
	VisitRectangle(Rectangle) T
	VisitLine(Line) T
	VisitPolygon(Polygon) T
	VisitFreehand(Freehand) T
	VisitPath(Path) T
	VisitMultiPolygon(MultiPolygon) T
	VisitImageRegion(ImageRegion) T
}

// Visit dispatches s to the matching visitor method.
func Visit[T any](s Shape, v ShapeVisitor[T]) T {
	switch s := s.(type) {
	case PointShape:
		return v.VisitPoint(s)
	case Circle:
		return v.VisitCircle(s)
	case Ellipse:
		return v.VisitEllipse(s)
	case Rectangle:
		return v.VisitRectangle(s)
	case Line:
		return v.VisitLine(s)
	case Polygon:
		return v.VisitPolygon(s)
	case Freehand:
		return v.VisitFreehand(s)
	case Path:
		return v.VisitPath(s)
	case MultiPolygon:
		return v.VisitMultiPolygon(s)
	case ImageRegion:
		return v.VisitImageRegion(s)
	}
	// Unreachable: Shape is sealed to the types above.
	panic(fmt.Sprintf("models: unknown shape %T", s))
}
