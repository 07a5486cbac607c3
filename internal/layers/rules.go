package layers

import (
	"slices"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/annota/internal/models"
)

// Rule reports whether an annotation belongs to a layer.
type Rule func(models.Annotation) bool

// PolarityRule matches annotations with the given mask polarity.
func PolarityRule(p models.MaskPolarity) Rule {
	return func(a models.Annotation) bool { return a.MaskPolarity == p }
}

// KindRule matches annotations whose shape is one of kinds.
func KindRule(kinds ...models.Kind) Rule {
	kinds = slices.Clone(kinds)
	return func(a models.Annotation) bool { return slices.Contains(kinds, a.Kind()) }
}

// PropertyRule matches annotations whose property key equals v.
func PropertyRule(key string, v models.Value) Rule {
	return func(a models.Annotation) bool {
		got, ok := a.Properties[key]
		return ok && got.Equal(v)
	}
}

// HasPropertyRule matches annotations that carry key with any value.
func HasPropertyRule(key string) Rule {
	return func(a models.Annotation) bool {
		_, ok := a.Properties[key]
		return ok
	}
}

// AllOf matches when every rule matches. No rules match everything.
func AllOf(rules ...Rule) Rule {
	return func(a models.Annotation) bool {
		for _, r := range rules {
			if !r(a) {
				return false
			}
		}
		return true
	}
}

// RuleSpec is the declarative form of a Rule used by configuration and the
// HTTP API. Set conditions are combined with AND.
type RuleSpec struct {
	Kinds    []models.Kind       `json:"kinds,omitempty" yaml:"kinds"`
	Polarity models.MaskPolarity `json:"polarity,omitempty" yaml:"polarity"`
	Property string              `json:"property,omitempty" yaml:"property"`
	// Value is compared as a string. Empty means the property only has to exist.
	Value string `json:"value,omitempty" yaml:"value"`
}

var knownKinds = []any{
	models.KindPoint, models.KindCircle, models.KindEllipse, models.KindRectangle,
	models.KindLine, models.KindPolygon, models.KindFreehand, models.KindPath,
	models.KindMultiPolygon, models.KindImage,
}

// Validate checks kinds and polarity are known and Value has a Property.
func (s RuleSpec) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Kinds, validation.Each(validation.In(knownKinds...))),
		validation.Field(&s.Polarity, validation.In(models.PolarityPositive, models.PolarityNegative)),
		validation.Field(&s.Property, validation.When(s.Value != "", validation.Required)),
	)
}

// Compile turns s into a Rule. An empty spec compiles to nil, which
// never matches.
func (s RuleSpec) Compile() Rule {
	var rules []Rule
	if len(s.Kinds) > 0 {
		rules = append(rules, KindRule(s.Kinds...))
	}
	if s.Polarity != models.PolarityNone {
		rules = append(rules, PolarityRule(s.Polarity))
	}
	if s.Property != "" {
		if s.Value != "" {
			rules = append(rules, PropertyRule(s.Property, models.StringValue(s.Value)))
		} else {
			rules = append(rules, HasPropertyRule(s.Property))
		}
	}
	if len(rules) == 0 {
		return nil
	}
	return AllOf(rules...)
}
