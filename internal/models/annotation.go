// Package models defines the annotation record, its shape variants and
// their serialized form.
package models

import (
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaskPolarity tags mask regions as included or excluded.
type MaskPolarity string

const (
	PolarityNone     MaskPolarity = ""
	PolarityPositive MaskPolarity = "positive"
	PolarityNegative MaskPolarity = "negative"
)

// Style carries renderer hints. The engine only reads FillOpacity.
type Style struct {
	Fill          string   `json:"fill,omitempty"`
	FillOpacity   *float64 `json:"fillOpacity,omitempty"`
	Stroke        string   `json:"stroke,omitempty"`
	StrokeWidth   *float64 `json:"strokeWidth,omitempty"`
	StrokeOpacity *float64 `json:"strokeOpacity,omitempty"`
}

// Opacity returns FillOpacity, or 1 when unset.
func (s *Style) Opacity() float64 {
	if s == nil || s.FillOpacity == nil {
		return 1
	}
	return *s.FillOpacity
}

// Validate checks opacities are within [0,1].
func (s Style) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.FillOpacity, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&s.StrokeOpacity, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&s.StrokeWidth, validation.Min(0.0)),
	)
}

func (s *Style) clone() *Style {
	if s == nil {
		return nil
	}
	return &Style{
		Fill:          s.Fill,
		FillOpacity:   clonePtr(s.FillOpacity),
		Stroke:        s.Stroke,
		StrokeWidth:   clonePtr(s.StrokeWidth),
		StrokeOpacity: clonePtr(s.StrokeOpacity),
	}
}

// Annotation is the unit record held by the store.
type Annotation struct {
	ID           string       `json:"id"`
	Shape        Shape        `json:"shape"`
	Properties   Properties   `json:"properties,omitempty"`
	Style        *Style       `json:"style,omitempty"`
	MaskPolarity MaskPolarity `json:"maskPolarity,omitempty"`
}

// Bounds returns the shape's bounding box, or the zero box for a nil shape.
func (a Annotation) Bounds() Bounds {
	if a.Shape == nil {
		return Bounds{}
	}
	return a.Shape.Bounds()
}

// Kind returns the shape kind, or "" for a nil shape.
func (a Annotation) Kind() Kind {
	if a.Shape == nil {
		return ""
	}
	return a.Shape.Kind()
}

// Clone returns a deep copy sharing no slices or maps with a.
func (a Annotation) Clone() Annotation {
	return Annotation{
		ID:           a.ID,
		Shape:        CloneShape(a.Shape),
		Properties:   a.Properties.Clone(),
		Style:        a.Style.clone(),
		MaskPolarity: a.MaskPolarity,
	}
}

// Validate checks the record is storable.
func (a Annotation) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.ID, validation.Required),
		validation.Field(&a.Shape, validation.Required),
		validation.Field(&a.MaskPolarity, validation.In(PolarityPositive, PolarityNegative)),
		validation.Field(&a.Style),
	)
}

// UnmarshalJSON decodes the tagged shape into its concrete variant.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	type alias Annotation
	var wire struct {
		alias
		Shape json.RawMessage `json:"shape"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*a = Annotation(wire.alias)
	a.Shape = nil
	if len(wire.Shape) > 0 && string(wire.Shape) != "null" {
		s, err := UnmarshalShape(wire.Shape)
		if err != nil {
			return fmt.Errorf("annotation %q: %w", a.ID, err)
		}
		a.Shape = s
	}
	return nil
}

// MarshalJSON writes the shape in tagged form.
func (a Annotation) MarshalJSON() ([]byte, error) {
	type alias Annotation
	var shape json.RawMessage
	if a.Shape != nil {
		raw, err := MarshalShape(a.Shape)
		if err != nil {
			return nil, err
		}
		shape = raw
	} else {
		shape = json.RawMessage("null")
	}
	return json.Marshal(struct {
		alias
		Shape json.RawMessage `json:"shape"`
	}{alias: alias(a), Shape: shape})
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
