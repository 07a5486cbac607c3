package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/annota/internal/apperr"
	"github.com/starford/annota/internal/models"
)

func layerIDs(ls []Layer) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.ID
	}
	return out
}

func TestReservedLayers(t *testing.T) {
	m := NewManager()
	assert.Equal(t, []string{ImageLayerID, DefaultLayerID}, layerIDs(m.AllLayers()))

	img, ok := m.Layer(ImageLayerID)
	require.True(t, ok)
	assert.True(t, img.Locked)
	assert.True(t, img.Reserved())

	assert.False(t, m.DeleteLayer(ImageLayerID))
	assert.False(t, m.DeleteLayer(DefaultLayerID))
	assert.Len(t, m.AllLayers(), 2)

	_, err := m.CreateLayer(DefaultLayerID, Config{})
	assert.ErrorIs(t, err, apperr.ErrDuplicateLayer)
}

func TestCreateLayerDefaults(t *testing.T) {
	m := NewManager()
	l, err := m.CreateLayer("masks", Config{Opacity: Ptr(0.5)})
	require.NoError(t, err)
	assert.Equal(t, "masks", l.Name)
	assert.True(t, l.Visible)
	assert.False(t, l.Locked)
	assert.Equal(t, 0.5, l.Opacity)
	assert.Zero(t, l.ZIndex)

	_, err = m.CreateLayer("masks", Config{})
	assert.ErrorIs(t, err, apperr.ErrDuplicateLayer)
}

func TestUpdateLayerIsPartial(t *testing.T) {
	m := NewManager()
	_, err := m.CreateLayer("a", Config{Name: Ptr("Cells"), Opacity: Ptr(0.7), ZIndex: Ptr(3)})
	require.NoError(t, err)

	l, ok := m.UpdateLayer("a", Config{Locked: Ptr(true)})
	require.True(t, ok)
	assert.Equal(t, "Cells", l.Name)
	assert.Equal(t, 0.7, l.Opacity)
	assert.Equal(t, 3, l.ZIndex)
	assert.True(t, l.Locked)

	_, ok = m.UpdateLayer("missing", Config{Locked: Ptr(true)})
	assert.False(t, ok)
}

func TestSetLayerOpacityClamps(t *testing.T) {
	m := NewManager()
	_, err := m.CreateLayer("x", Config{})
	require.NoError(t, err)

	m.SetLayerOpacity("x", 5)
	l, _ := m.Layer("x")
	assert.Equal(t, 1.0, l.Opacity)

	m.SetLayerOpacity("x", -3)
	l, _ = m.Layer("x")
	assert.Equal(t, 0.0, l.Opacity)
}

func TestQueriesDefaultPermissive(t *testing.T) {
	m := NewManager()
	assert.True(t, m.IsLayerVisible("nope"))
	assert.False(t, m.IsLayerLocked("nope"))
	assert.True(t, m.IsLayerLocked(ImageLayerID))

	m.SetLayerVisibility(DefaultLayerID, false)
	assert.False(t, m.IsLayerVisible(DefaultLayerID))
	assert.Equal(t, []string{ImageLayerID}, layerIDs(m.VisibleLayers()))
}

func TestLayersByZIndexIsStable(t *testing.T) {
	m := NewManager()
	for _, id := range []string{"c", "a", "b"} {
		_, err := m.CreateLayer(id, Config{ZIndex: Ptr(5)})
		require.NoError(t, err)
	}
	m.SetLayerZIndex("a", -1)

	assert.Equal(t, []string{ImageLayerID, "a", DefaultLayerID, "c", "b"}, layerIDs(m.LayersByZIndex()))
}

func TestLayerResolution(t *testing.T) {
	m := NewManager()
	_, err := m.CreateLayer("masks", Config{})
	require.NoError(t, err)
	_, err = m.CreateLayer("negatives", Config{Rule: PolarityRule(models.PolarityNegative)})
	require.NoError(t, err)
	_, err = m.CreateLayer("polys", Config{RuleSpec: &RuleSpec{Kinds: []models.Kind{models.KindPolygon}}})
	require.NoError(t, err)

	poly := models.Polygon{Points: []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}}

	explicit := models.Annotation{
		ID:           "a",
		Shape:        poly,
		Properties:   models.Properties{PropertyKey: models.StringValue("masks")},
		MaskPolarity: models.PolarityNegative,
	}
	assert.Equal(t, "masks", m.LayerForAnnotation(explicit).ID, "explicit layer beats rules")

	unknown := explicit.Clone()
	unknown.Properties[PropertyKey] = models.StringValue("gone")
	assert.Equal(t, "negatives", m.LayerForAnnotation(unknown).ID, "first matching rule in insertion order")

	byKind := models.Annotation{ID: "b", Shape: poly}
	assert.Equal(t, "polys", m.LayerForAnnotation(byKind).ID)

	plain := models.Annotation{ID: "c", Shape: models.PointShape{}}
	assert.Equal(t, DefaultLayerID, m.LayerForAnnotation(plain).ID)

	m.DeleteLayer("masks")
	assert.Equal(t, "negatives", m.LayerForAnnotation(explicit).ID)
}

func TestEffectiveOpacity(t *testing.T) {
	m := NewManager()
	_, err := m.CreateLayer("masks", Config{Opacity: Ptr(0.5)})
	require.NoError(t, err)

	a := models.Annotation{
		ID:         "a",
		Shape:      models.PointShape{},
		Properties: models.Properties{PropertyKey: models.StringValue("masks")},
		Style:      &models.Style{FillOpacity: Ptr(0.4)},
	}
	assert.InDelta(t, 0.2, EffectiveOpacity(m, a), 1e-12)

	plain := models.Annotation{ID: "b", Shape: models.PointShape{}}
	assert.Equal(t, 1.0, EffectiveOpacity(m, plain))
}

func TestAnnotationVisibilityAndEditability(t *testing.T) {
	m := NewManager()
	_, err := m.CreateLayer("hidden", Config{Visible: Ptr(false), Locked: Ptr(true)})
	require.NoError(t, err)

	a := models.Annotation{ID: "a", Shape: models.PointShape{}, Properties: models.Properties{PropertyKey: models.StringValue("hidden")}}
	assert.False(t, IsAnnotationVisible(m, a))
	assert.False(t, IsAnnotationEditable(m, a))

	m.SetLayerLocked("hidden", false)
	assert.True(t, IsAnnotationEditable(m, a))
}

func TestLayerEvents(t *testing.T) {
	m := NewManager()
	var got []Event
	m.Observe(func(ev Event) { got = append(got, ev) })

	_, err := m.CreateLayer("x", Config{})
	require.NoError(t, err)
	m.SetLayerVisibility("x", false)
	m.DeleteLayer("x")
	m.DeleteLayer(DefaultLayerID)
	m.UpdateLayer("x", Config{Visible: Ptr(true)})

	require.Len(t, got, 3)
	assert.Equal(t, EventCreated, got[0].Type)
	assert.Equal(t, EventUpdated, got[1].Type)
	assert.False(t, got[1].Layer.Visible)
	assert.Equal(t, EventDeleted, got[2].Type)
	assert.Equal(t, "x", got[2].Layer.ID)
}

func TestRuleSpec(t *testing.T) {
	assert.Nil(t, RuleSpec{}.Compile())
	assert.NoError(t, RuleSpec{Kinds: []models.Kind{models.KindCircle}, Polarity: models.PolarityPositive}.Validate())
	assert.Error(t, RuleSpec{Kinds: []models.Kind{"hexagon"}}.Validate())
	assert.Error(t, RuleSpec{Polarity: "sideways"}.Validate())
	assert.Error(t, RuleSpec{Value: "x"}.Validate())

	rule := RuleSpec{Property: "source", Value: "sam", Polarity: models.PolarityPositive}.Compile()
	match := models.Annotation{
		ID:           "a",
		Shape:        models.PointShape{},
		Properties:   models.Properties{"source": models.StringValue("sam")},
		MaskPolarity: models.PolarityPositive,
	}
	assert.True(t, rule(match))
	miss := match.Clone()
	miss.MaskPolarity = models.PolarityNegative
	assert.False(t, rule(miss))

	has := RuleSpec{Property: "source"}.Compile()
	assert.True(t, has(match))
	assert.False(t, has(models.Annotation{ID: "b", Shape: models.PointShape{}}))
}
