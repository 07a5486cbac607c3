package annotationservice

import (
	"fmt"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/annota/internal/apperr"
	"github.com/starford/annota/internal/document"
	"github.com/starford/annota/internal/history"
	"github.com/starford/annota/internal/layers"
	"github.com/starford/annota/internal/models"
	"github.com/starford/annota/internal/store"
)

func newService(t *testing.T) *Service {
	t.Helper()
	n := 0
	return New(WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}))
}

func rect(id string, x, y, w, h float64) models.Annotation {
	return models.Annotation{ID: id, Shape: models.Rectangle{X: x, Y: y, Width: w, Height: h}}
}

func onLayer(a models.Annotation, layer string) models.Annotation {
	a.Properties = models.Properties{layers.PropertyKey: models.StringValue(layer)}
	return a
}

type recorder struct {
	annotations []store.Event
	layers      []layers.Event
	history     []history.State
}

func (r *recorder) AnnotationsChanged(ev store.Event) { r.annotations = append(r.annotations, ev) }
func (r *recorder) LayerChanged(ev layers.Event) { r.layers = append(r.layers, ev) }
func (r *recorder) HistoryChanged(st history.State) { r.history = append(r.history, st) }

func TestCreateGeneratesID(t *testing.T) {
	s := newService(t)

	got, err := s.Create(rect("", 0, 0, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, "gen-1", got.ID)

	_, err = s.Create(rect("gen-1", 0, 0, 1, 1))
	assert.ErrorIs(t, err, apperr.ErrDuplicateID)
	assert.Len(t, s.List(ListFilter{}), 1)
}

func TestCreateValidatesAfterFillingID(t *testing.T) {
	s := newService(t)

	_, err := s.Create(models.Annotation{})
	var verr validation.Errors
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr, "shape")
	assert.NotContains(t, verr, "id")

	_, err = s.Create(rect("a", 0, 0, 1, 1))
	require.NoError(t, err)
	_, err = s.Update("a", models.Annotation{MaskPolarity: "up", Shape: models.PointShape{Point: models.Pt(1, 1)}})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr, "maskPolarity")
}

func TestGetMissing(t *testing.T) {
	s := newService(t)
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, s.Delete("nope"), apperr.ErrNotFound)
	_, err = s.Update("nope", rect("nope", 0, 0, 1, 1))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateAndUndo(t *testing.T) {
	s := newService(t)
	_, err := s.Create(rect("a", 0, 0, 10, 10))
	require.NoError(t, err)

	_, err = s.Update("a", rect("b", 0, 0, 1, 1))
	assert.ErrorIs(t, err, apperr.ErrIDMismatch)

	got, err := s.Update("a", rect("", 5, 5, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, models.Bounds{MinX: 5, MinY: 5, MaxX: 15, MaxY: 15}, got.Bounds())

	st, ok, err := s.Undo()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, st.CanRedo)

	got, err = s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, models.Bounds{MaxX: 10, MaxY: 10}, got.Bounds())

	_, ok, err = s.Redo()
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ = s.Get("a")
	assert.Equal(t, 5.0, got.Bounds().MinX)
}

func TestLockedLayerRefusesEdits(t *testing.T) {
	s := newService(t)
	_, err := s.CreateLayer("frozen", layers.Config{Locked: layers.Ptr(true)})
	require.NoError(t, err)

	_, err = s.Create(onLayer(rect("a", 0, 0, 1, 1), "frozen"))
	assert.ErrorIs(t, err, apperr.ErrLocked)

	_, err = s.Create(rect("b", 0, 0, 1, 1))
	require.NoError(t, err)
	_, err = s.Update("b", onLayer(rect("b", 0, 0, 2, 2), "frozen"))
	assert.ErrorIs(t, err, apperr.ErrLocked)

	_, err = s.UpdateLayer("frozen", layers.Config{Locked: layers.Ptr(false)})
	require.NoError(t, err)
	_, err = s.Update("b", onLayer(rect("b", 0, 0, 2, 2), "frozen"))
	require.NoError(t, err)

	_, err = s.UpdateLayer("frozen", layers.Config{Locked: layers.Ptr(true)})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Delete("b"), apperr.ErrLocked)
}

func TestListFilters(t *testing.T) {
	s := newService(t)
	_, err := s.CreateLayer("hidden", layers.Config{Visible: layers.Ptr(false)})
	require.NoError(t, err)
	for _, a := range []models.Annotation{
		rect("r1", 0, 0, 1, 1),
		onLayer(rect("r2", 0, 0, 1, 1), "hidden"),
		{ID: "c1", Shape: models.Circle{Center: models.Pt(0, 0), Radius: 1}},
	} {
		_, err := s.Create(a)
		require.NoError(t, err)
	}

	ids := func(list []models.Annotation) []string {
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, a.ID)
		}
		return out
	}
	assert.Equal(t, []string{"r1", "r2", "c1"}, ids(s.List(ListFilter{})))
	assert.Equal(t, []string{"r1", "r2"}, ids(s.List(ListFilter{Kind: models.KindRectangle})))
	assert.Equal(t, []string{"r2"}, ids(s.List(ListFilter{Layer: "hidden"})))
	assert.Equal(t, []string{"r1", "c1"}, ids(s.List(ListFilter{VisibleOnly: true})))
}

func TestAtAndIntersecting(t *testing.T) {
	s := newService(t)
	_, err := s.CreateLayer("hidden", layers.Config{Visible: layers.Ptr(false)})
	require.NoError(t, err)
	_, err = s.Create(rect("bottom", 0, 0, 10, 10))
	require.NoError(t, err)
	_, err = s.Create(onLayer(rect("top", 0, 0, 10, 10), "hidden"))
	require.NoError(t, err)

	got, err := s.At(5, 5, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "top", got.ID)

	got, err = s.At(5, 5, nil, true)
	require.NoError(t, err)
	assert.Equal(t, "bottom", got.ID)

	zero := 0.0
	_, err = s.At(11, 5, &zero, false)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.At(11, 5, nil, false)
	assert.NoError(t, err, "default hit buffer reaches the edge")

	assert.Len(t, s.Intersecting(models.Bounds{MinX: 8, MinY: 8, MaxX: 20, MaxY: 20}, false), 2)
	assert.Len(t, s.Intersecting(models.Bounds{MinX: 8, MinY: 8, MaxX: 20, MaxY: 20}, true), 1)
}

func TestMergeIsOneUndoStep(t *testing.T) {
	s := newService(t)
	_, err := s.Create(rect("a", 0, 0, 2, 2))
	require.NoError(t, err)
	_, err = s.Create(rect("b", 1, 1, 2, 2))
	require.NoError(t, err)

	merged, err := s.Merge([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, models.KindPolygon, merged.Kind())
	assert.Len(t, s.List(ListFilter{}), 1)

	_, ok, err := s.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	_, err = s.Get("a")
	assert.NoError(t, err)
	_, err = s.Get("b")
	assert.NoError(t, err)
	_, err = s.Get(merged.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMergeInfeasible(t *testing.T) {
	s := newService(t)
	_, err := s.Create(rect("a", 0, 0, 2, 2))
	require.NoError(t, err)
	_, err = s.Create(models.Annotation{ID: "p", Shape: models.PointShape{Point: models.Pt(1, 1)}})
	require.NoError(t, err)

	_, err = s.Merge([]string{"a"})
	assert.ErrorIs(t, err, apperr.ErrInfeasible)
	_, err = s.Merge([]string{"a", "p"})
	assert.ErrorIs(t, err, apperr.ErrInfeasible)
	_, err = s.Merge([]string{"a", "missing"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Len(t, s.List(ListFilter{}), 2)
}

func TestSplit(t *testing.T) {
	s := newService(t)
	_, err := s.Create(rect("sq", 0, 0, 10, 10))
	require.NoError(t, err)

	pieces, err := s.Split("sq", []models.Point{{X: 5, Y: -1}, {X: 5, Y: 11}})
	require.NoError(t, err)
	assert.Len(t, pieces, 2)
	_, err = s.Get("sq")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Split(pieces[0].ID, []models.Point{{X: 100, Y: 100}, {X: 200, Y: 200}})
	assert.ErrorIs(t, err, apperr.ErrInfeasible)

	_, _, err = s.Undo()
	require.NoError(t, err)
	_, err = s.Get("sq")
	assert.NoError(t, err)
}

func TestLayerOperations(t *testing.T) {
	s := newService(t)
	_, err := s.CreateLayer("roi", layers.Config{ZIndex: layers.Ptr(5)})
	require.NoError(t, err)
	_, err = s.CreateLayer("roi", layers.Config{})
	assert.ErrorIs(t, err, apperr.ErrDuplicateLayer)

	_, err = s.CreateLayer("bad", layers.Config{RuleSpec: &layers.RuleSpec{Polarity: "sideways"}})
	assert.Error(t, err)

	_, err = s.UpdateLayer("missing", layers.Config{Name: layers.Ptr("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	ls := s.Layers()
	require.Len(t, ls, 3)
	assert.Equal(t, layers.ImageLayerID, ls[0].ID)
	assert.Equal(t, "roi", ls[2].ID)

	assert.ErrorIs(t, s.DeleteLayer(layers.DefaultLayerID), apperr.ErrReservedLayer)
	assert.ErrorIs(t, s.DeleteLayer("missing"), apperr.ErrNotFound)
	assert.NoError(t, s.DeleteLayer("roi"))
}

func TestResolve(t *testing.T) {
	s := newService(t)
	_, err := s.CreateLayer("dim", layers.Config{Opacity: layers.Ptr(0.5)})
	require.NoError(t, err)
	a := onLayer(rect("a", 0, 0, 1, 1), "dim")
	a.Style = &models.Style{FillOpacity: layers.Ptr(0.4)}
	_, err = s.Create(a)
	require.NoError(t, err)

	r, err := s.Resolve("a")
	require.NoError(t, err)
	assert.Equal(t, "dim", r.Layer.ID)
	assert.True(t, r.Visible)
	assert.True(t, r.Editable)
	assert.InDelta(t, 0.2, r.Opacity, 1e-9)
}

func TestImportExport(t *testing.T) {
	s := newService(t)
	_, err := s.Create(rect("old", 0, 0, 1, 1))
	require.NoError(t, err)

	doc := document.New([]models.Annotation{rect("x", 0, 0, 1, 1), rect("y", 2, 2, 1, 1)}, nil)
	doc.Layers = []document.Layer{{ID: "roi", Name: layers.Ptr("ROI")}}

	require.NoError(t, s.Import(doc, false))
	assert.Len(t, s.List(ListFilter{}), 3)
	assert.Equal(t, 2, s.HistoryState().UndoSize, "import adds a single undo step")

	_, _, err = s.Undo()
	require.NoError(t, err)
	assert.Len(t, s.List(ListFilter{}), 1)

	assert.ErrorIs(t, s.Import(document.New([]models.Annotation{rect("old", 0, 0, 1, 1)}, nil), false), apperr.ErrDuplicateID)

	require.NoError(t, s.Import(doc, true))
	assert.Len(t, s.List(ListFilter{}), 2)
	assert.False(t, s.HistoryState().CanUndo)

	out := s.Export()
	assert.Equal(t, document.Version, out.Version)
	assert.Len(t, out.Annotations, 2)
	var ids []string
	for _, l := range out.Layers {
		ids = append(ids, l.ID)
	}
	assert.ElementsMatch(t, []string{layers.ImageLayerID, layers.DefaultLayerID, "roi"}, ids)
}

func TestImportDuplicateLeavesStateAlone(t *testing.T) {
	s := newService(t)
	_, err := s.Create(rect("old", 0, 0, 1, 1))
	require.NoError(t, err)
	_, err = s.Create(rect("tmp", 5, 5, 1, 1))
	require.NoError(t, err)
	_, _, err = s.Undo()
	require.NoError(t, err)
	before := s.HistoryState()
	require.True(t, before.CanRedo)

	doc := document.New([]models.Annotation{rect("new", 0, 0, 1, 1), rect("old", 2, 2, 1, 1)}, nil)
	doc.Layers = []document.Layer{
		{ID: "roi", Name: layers.Ptr("ROI")},
		{ID: layers.DefaultLayerID, Locked: layers.Ptr(true)},
	}

	assert.ErrorIs(t, s.Import(doc, false), apperr.ErrDuplicateID)
	assert.Equal(t, before, s.HistoryState(), "redo survives a refused import")
	assert.Len(t, s.List(ListFilter{}), 1)
	for _, l := range s.Layers() {
		assert.NotEqual(t, "roi", l.ID, "document layers are not applied")
		if l.ID == layers.DefaultLayerID {
			assert.False(t, l.Locked)
		}
	}
}

func TestMask(t *testing.T) {
	s := newService(t)
	_, err := s.Create(rect("r", 1, 1, 2, 2))
	require.NoError(t, err)
	_, err = s.Create(models.Annotation{ID: "l", Shape: models.Line{Start: models.Pt(0, 0), End: models.Pt(1, 1)}})
	require.NoError(t, err)

	img, err := s.Mask("r", 0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, uint8(0xff), img.AlphaAt(1, 1).A)
	assert.Equal(t, uint8(0), img.AlphaAt(0, 0).A)

	soft, err := s.Mask("r", 4, 4, true)
	require.NoError(t, err)
	assert.Equal(t, 4, soft.Bounds().Dy())

	_, err = s.Mask("l", 4, 4, false)
	assert.ErrorIs(t, err, apperr.ErrInfeasible)
	_, err = s.Mask("r", 100000, 4, false)
	assert.ErrorIs(t, err, apperr.ErrInfeasible)
}

func TestSubscribe(t *testing.T) {
	s := newService(t)
	rec := &recorder{}
	cancel := s.Subscribe(rec)

	_, err := s.Create(rect("a", 0, 0, 1, 1))
	require.NoError(t, err)
	_, err = s.CreateLayer("roi", layers.Config{})
	require.NoError(t, err)

	require.Len(t, rec.annotations, 1)
	assert.Len(t, rec.annotations[0].Created, 1)
	require.Len(t, rec.layers, 1)
	assert.Equal(t, layers.EventCreated, rec.layers[0].Type)
	require.NotEmpty(t, rec.history)
	assert.True(t, rec.history[len(rec.history)-1].CanUndo)

	cancel()
	_, err = s.Create(rect("b", 0, 0, 1, 1))
	require.NoError(t, err)
	assert.Len(t, rec.annotations, 1)
}
