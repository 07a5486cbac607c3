// Package layers groups annotations into named virtual layers with their
// own visibility, lock, opacity and stacking order. Layers never own
// annotations; membership is resolved from each annotation on demand.
package layers

import (
	"slices"

	"github.com/starford/annota/internal/models"
)

// Reserved layer ids. Both always exist.
const (
	ImageLayerID   = "image"
	DefaultLayerID = "default"
)

// PropertyKey is the annotation property naming an explicit layer.
const PropertyKey = "layer"

// imageZIndex keeps the background below anything a caller is likely to create.
const imageZIndex = -1000

// Layer is a named grouping.
type Layer struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Visible  bool      `json:"visible"`
	Locked   bool      `json:"locked"`
	Opacity  float64   `json:"opacity"`
	ZIndex   int       `json:"zIndex"`
	RuleSpec *RuleSpec `json:"rule,omitempty"`
	// Rule classifies annotations without an explicit layer. It is compiled
	// from RuleSpec when one was given.
	Rule Rule `json:"-"`
}

// Reserved reports whether the layer is one of the two permanent layers.
func (l Layer) Reserved() bool { return IsReserved(l.ID) }

// IsReserved reports whether id names a permanent layer.
func IsReserved(id string) bool {
	return id == ImageLayerID || id == DefaultLayerID
}

func (l Layer) clone() Layer {
	c := l
	if l.RuleSpec != nil {
		spec := *l.RuleSpec
		spec.Kinds = slices.Clone(spec.Kinds)
		c.RuleSpec = &spec
	}
	return c
}

// Config holds optional layer settings. Nil fields are left alone, so the
// same type serves creation and partial updates.
type Config struct {
	Name     *string   `json:"name,omitempty" yaml:"name"`
	Visible  *bool     `json:"visible,omitempty" yaml:"visible"`
	Locked   *bool     `json:"locked,omitempty" yaml:"locked"`
	Opacity  *float64  `json:"opacity,omitempty" yaml:"opacity"`
	ZIndex   *int      `json:"zIndex,omitempty" yaml:"z_index"`
	RuleSpec *RuleSpec `json:"rule,omitempty" yaml:"rule"`
	// Rule sets a programmatic classification rule. RuleSpec wins when both
	// are set.
	Rule Rule `json:"-" yaml:"-"`
}

// Empty reports whether no field is set.
func (c Config) Empty() bool {
	return c.Name == nil && c.Visible == nil && c.Locked == nil &&
		c.Opacity == nil && c.ZIndex == nil && c.RuleSpec == nil && c.Rule == nil
}

func (c Config) apply(l *Layer) {
	if c.Name != nil {
		l.Name = *c.Name
	}
	if c.Visible != nil {
		l.Visible = *c.Visible
	}
	if c.Locked != nil {
		l.Locked = *c.Locked
	}
	if c.Opacity != nil {
		l.Opacity = clamp01(*c.Opacity)
	}
	if c.ZIndex != nil {
		l.ZIndex = *c.ZIndex
	}
	switch {
	case c.RuleSpec != nil:
		spec := *c.RuleSpec
		spec.Kinds = slices.Clone(spec.Kinds)
		l.RuleSpec = &spec
		l.Rule = spec.Compile()
	case c.Rule != nil:
		l.RuleSpec = nil
		l.Rule = c.Rule
	}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

// Ptr returns a pointer to v, for filling Config literals.
func Ptr[T any](v T) *T { return &v }

// Resolver maps an annotation to its effective layer.
type Resolver interface {
	LayerForAnnotation(a models.Annotation) Layer
}

// IsAnnotationVisible reports whether a's resolved layer is visible.
func IsAnnotationVisible(r Resolver, a models.Annotation) bool {
	return r.LayerForAnnotation(a).Visible
}

// IsAnnotationEditable reports whether a's resolved layer is unlocked.
func IsAnnotationEditable(r Resolver, a models.Annotation) bool {
	return !r.LayerForAnnotation(a).Locked
}

// EffectiveOpacity multiplies the resolved layer's opacity by a's own fill
// opacity. Either defaults to 1.
func EffectiveOpacity(r Resolver, a models.Annotation) float64 {
	return r.LayerForAnnotation(a).Opacity * a.Style.Opacity()
}
