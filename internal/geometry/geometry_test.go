package geometry

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/annota/internal/models"
)

func square(id string, x, y, size float64) models.Annotation {
	return models.Annotation{ID: id, Shape: models.Rectangle{X: x, Y: y, Width: size, Height: size}}
}

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	})
}

func TestToPolygonCoordinates(t *testing.T) {
	tests := []struct {
		name  string
		shape models.Shape
		rings int
	}{
		{"rectangle", models.Rectangle{Width: 2, Height: 2}, 1},
		{"image region", models.ImageRegion{Width: 2, Height: 2, ImageRef: "x"}, 1},
		{"polygon", models.Polygon{Points: []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}}, 1},
		{"closed freehand", models.Freehand{Points: []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}, Closed: true}, 1},
		{"closed path", models.Path{Points: []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}, Closed: true}, 1},
		{"multipolygon", models.MultiPolygon{Polygons: [][]models.Point{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}, {{X: 5, Y: 5}, {X: 6, Y: 5}, {X: 5, Y: 6}}}}, 2},
		{"point", models.PointShape{}, 0},
		{"circle", models.Circle{Radius: 3}, 0},
		{"ellipse", models.Ellipse{RadiusX: 2, RadiusY: 1}, 0},
		{"line", models.Line{End: models.Pt(1, 1)}, 0},
		{"open freehand", models.Freehand{Points: []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}}, 0},
		{"degenerate polygon", models.Polygon{Points: []models.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}}, 0},
		{"repeated vertices", models.Polygon{Points: []models.Point{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 0}}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coords, ok := ToPolygonCoordinates(models.Annotation{ID: "a", Shape: tt.shape})
			assert.Equal(t, tt.rings > 0, ok)
			assert.Len(t, coords, tt.rings)
		})
	}
}

func TestMergeSingletonIsIdentity(t *testing.T) {
	a := models.Annotation{
		ID:         "only",
		Shape:      models.Circle{Center: models.Pt(3, 3), Radius: 1},
		Properties: models.Properties{"layer": models.StringValue("masks")},
	}
	got, ok := Merge([]models.Annotation{a})
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestMergeEmptyFails(t *testing.T) {
	_, ok := Merge(nil)
	assert.False(t, ok)
}

func TestMergeRejectsUnconvertible(t *testing.T) {
	_, ok := Merge([]models.Annotation{
		square("a", 0, 0, 1),
		{ID: "b", Shape: models.Line{End: models.Pt(5, 5)}},
	})
	assert.False(t, ok)
}

func TestMergeOverlappingSquares(t *testing.T) {
	opacity := 0.3
	first := square("a", 0, 0, 2)
	first.Properties = models.Properties{"label": models.StringValue("cell")}
	first.Style = &models.Style{FillOpacity: &opacity}
	first.MaskPolarity = models.PolarityNegative

	got, ok := Merge([]models.Annotation{first, square("b", 1, 1, 2)}, sequentialIDs())
	require.True(t, ok)

	assert.Equal(t, "gen-1", got.ID)
	assert.Equal(t, models.KindPolygon, got.Kind())
	assert.Equal(t, models.Bounds{MinX: 0, MinY: 0, MaxX: 3, MaxY: 3}, got.Bounds())
	coords, ok := ToPolygonCoordinates(got)
	require.True(t, ok)
	assert.InDelta(t, 7, Area(coords), 1e-9)

	label, _ := got.Properties.String("label")
	assert.Equal(t, "cell", label)
	assert.Equal(t, 0.3, got.Style.Opacity())
	assert.Equal(t, models.PolarityNegative, got.MaskPolarity)
}

func TestMergeDisjointSquaresTakesHull(t *testing.T) {
	got, ok := Merge([]models.Annotation{square("a", 0, 0, 1), square("b", 10, 10, 1)})
	require.True(t, ok)

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, models.Bounds{MinX: 0, MinY: 0, MaxX: 11, MaxY: 11}, got.Bounds())

	poly, ok := got.Shape.(models.Polygon)
	require.True(t, ok)
	want := []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 11, Y: 10}, {X: 11, Y: 11}, {X: 10, Y: 11}, {X: 0, Y: 1}}
	assert.ElementsMatch(t, want, poly.Points)
}

func TestConvexHull(t *testing.T) {
	pts := []models.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}, {X: 2, Y: 2}, {X: 1, Y: 3}, {X: 0, Y: 2}, {X: 0, Y: 0}}
	hull := ConvexHull(pts)
	assert.Equal(t, []models.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}}, hull)

	assert.Len(t, ConvexHull([]models.Point{{X: 1, Y: 1}, {X: 1, Y: 1}}), 1)
	assert.Len(t, ConvexHull([]models.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}), 2)
}

func TestSplitSquare(t *testing.T) {
	src := square("src", 0, 0, 10)
	src.Properties = models.Properties{"layer": models.StringValue("masks")}

	for _, width := range []float64{DefaultSplitWidth, 1} {
		t.Run(fmt.Sprint(width), func(t *testing.T) {
			pieces, ok := Split(src, []models.Point{{X: -1, Y: 5}, {X: 11, Y: 5}}, WithSplitWidth(width), sequentialIDs())
			require.True(t, ok)
			require.Len(t, pieces, 2)

			var total float64
			for i, p := range pieces {
				assert.Equal(t, fmt.Sprintf("gen-%d", i+1), p.ID)
				assert.Equal(t, models.KindPolygon, p.Kind())
				layer, _ := p.Properties.String("layer")
				assert.Equal(t, "masks", layer)
				coords, ok := ToPolygonCoordinates(p)
				require.True(t, ok)
				total += Area(coords)
			}
			assert.InDelta(t, 100-10*width, total, 1e-6)
		})
	}
}

func TestSplitEdgeToEdge(t *testing.T) {
	src := square("src", 0, 0, 10)

	pieces, ok := Split(src, []models.Point{{X: 0, Y: 5}, {X: 10, Y: 5}}, sequentialIDs())
	require.True(t, ok)
	require.Len(t, pieces, 2)

	var total float64
	for _, p := range pieces {
		coords, ok := ToPolygonCoordinates(p)
		require.True(t, ok)
		total += Area(coords)
	}
	assert.InDelta(t, 100-10*DefaultSplitWidth, total, 1e-6)
}

func TestSplitInfeasible(t *testing.T) {
	src := square("src", 0, 0, 10)
	tests := []struct {
		name string
		a    models.Annotation
		line []models.Point
	}{
		{"single point line", src, []models.Point{{X: 5, Y: 5}}},
		{"line misses", src, []models.Point{{X: -1, Y: 20}, {X: 11, Y: 20}}},
		{"line stops inside", src, []models.Point{{X: -1, Y: 5}, {X: 5, Y: 5}}},
		{"unconvertible target", models.Annotation{ID: "c", Shape: models.Circle{Radius: 5}}, []models.Point{{X: -10, Y: 0}, {X: 10, Y: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pieces, ok := Split(tt.a, tt.line)
			assert.False(t, ok)
			assert.Empty(t, pieces)
		})
	}
}

func TestSimplify(t *testing.T) {
	line := []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0.05}, {X: 2, Y: -0.05}, {X: 3, Y: 0}, {X: 3, Y: 3}}
	assert.Equal(t, []models.Point{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 3}}, Simplify(line, 0.1))
	assert.Equal(t, line, Simplify(line, 0))

	short := []models.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}
	out := Simplify(short, 5)
	assert.Equal(t, short, out)
	out[0] = models.Pt(9, 9)
	assert.Equal(t, models.Pt(0, 0), short[0], "result does not alias input")
}

func TestRasterize(t *testing.T) {
	coords := Coordinates{{{X: 2, Y: 2}, {X: 6, Y: 2}, {X: 6, Y: 5}, {X: 2, Y: 5}}}
	img := Rasterize(coords, 8, 8)

	var set int
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if img.AlphaAt(x, y).A == 0xff {
				set++
			}
		}
	}
	assert.Equal(t, 12, set)
	assert.Equal(t, uint8(0xff), img.AlphaAt(2, 2).A)
	assert.Equal(t, uint8(0), img.AlphaAt(6, 2).A)
	assert.Equal(t, uint8(0), img.AlphaAt(1, 3).A)
}

func TestRasterizeHugeSpan(t *testing.T) {
	coords := Coordinates{{{X: 5, Y: 0}, {X: 1e300, Y: 0}, {X: 1e300, Y: 4}, {X: 5, Y: 4}}}
	img := Rasterize(coords, 8, 4)
	for y := 0; y < 4; y++ {
		assert.Equal(t, uint8(0), img.AlphaAt(4, y).A, "row %d left of span", y)
		for x := 5; x < 8; x++ {
			assert.Equal(t, uint8(0xff), img.AlphaAt(x, y).A, "pixel %d,%d", x, y)
		}
	}

	neg := Rasterize(Coordinates{{{X: -1e300, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 2}, {X: -1e300, Y: 2}}}, 8, 2)
	assert.Equal(t, uint8(0xff), neg.AlphaAt(0, 0).A)
	assert.Equal(t, uint8(0xff), neg.AlphaAt(2, 1).A)
	assert.Equal(t, uint8(0), neg.AlphaAt(3, 1).A)
}

func TestRasterizeEvenOdd(t *testing.T) {
	outer := []models.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	inner := []models.Point{{X: 3, Y: 3}, {X: 7, Y: 3}, {X: 7, Y: 7}, {X: 3, Y: 7}}
	img := Rasterize(Coordinates{outer, inner}, 10, 10)
	assert.Equal(t, uint8(0xff), img.AlphaAt(1, 1).A)
	assert.Equal(t, uint8(0), img.AlphaAt(5, 5).A)
}

func TestCoverageMatchesRasterOnPixelGrid(t *testing.T) {
	coords := Coordinates{{{X: 2, Y: 2}, {X: 6, Y: 2}, {X: 6, Y: 5}, {X: 2, Y: 5}}}
	soft := Coverage(coords, 8, 8)
	hard := Rasterize(coords, 8, 8)
	assert.True(t, slices.Equal(hard.Pix, soft.Pix), "axis-aligned integer rectangle has no partial pixels")

	half := Coverage(Coordinates{{{X: 0, Y: 0}, {X: 1.5, Y: 0}, {X: 1.5, Y: 1}, {X: 0, Y: 1}}}, 2, 1)
	assert.Equal(t, uint8(0xff), half.AlphaAt(0, 0).A)
	assert.InDelta(t, 0x80, int(half.AlphaAt(1, 0).A), 2)
}
