package geometry

import (
	"github.com/google/uuid"

	"github.com/starford/annota/internal/models"
)

// DefaultSplitWidth is the total width of the band a split line removes.
const DefaultSplitWidth = 0.5

type options struct {
	newID      func() string
	splitWidth float64
}

// Option configures Merge and Split.
type Option func(*options)

// WithIDGenerator replaces the uuid generator used for result ids.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// WithSplitWidth sets the width of the band a split line cuts away.
// Non-positive widths are ignored.
func WithSplitWidth(w float64) Option {
	return func(o *options) {
		if w > 0 {
			o.splitWidth = w
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{newID: uuid.NewString, splitWidth: DefaultSplitWidth}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Merge unions the shapes of list into one polygon annotation. A single
// input is returned unchanged. Every input of a multi-way merge must have a
// polygon form. When the union is several disjoint regions the result is
// their convex hull.
//
// The result takes its properties, style and polarity from list[0].
func Merge(list []models.Annotation, opts ...Option) (models.Annotation, bool) {
	switch len(list) {
	case 0:
		return models.Annotation{}, false
	case 1:
		return list[0].Clone(), true
	}
	o := buildOptions(opts)

	var acc Coordinates
	for i, a := range list {
		coords, ok := ToPolygonCoordinates(a)
		if !ok {
			return models.Annotation{}, false
		}
		if i == 0 {
			acc = coords
			continue
		}
		acc = union(acc, coords)
	}

	outer := outerRings(acc)
	var ring []models.Point
	switch len(outer) {
	case 0:
		return models.Annotation{}, false
	case 1:
		ring = outer[0]
	default:
		var all []models.Point
		for _, r := range outer {
			all = append(all, r...)
		}
		ring = ConvexHull(all)
		if len(ring) < 3 {
			return models.Annotation{}, false
		}
	}
	return derive(list[0], o.newID(), ring), true
}

// derive builds a polygon annotation that inherits src's attributes.
func derive(src models.Annotation, id string, ring []models.Point) models.Annotation {
	c := src.Clone()
	return models.Annotation{
		ID:           id,
		Shape:        models.Polygon{Points: ring},
		Properties:   c.Properties,
		Style:        c.Style,
		MaskPolarity: c.MaskPolarity,
	}
}
