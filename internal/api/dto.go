package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/annota/internal/annotationservice"
	"github.com/starford/annota/internal/history"
	"github.com/starford/annota/internal/layers"
	"github.com/starford/annota/internal/models"
)

// Annotation is the annotation payload (aliased from the domain layer).
type Annotation = models.Annotation

// Layer is the layer payload (aliased from the domain layer).
type Layer = layers.Layer

// HistoryState is the undo/redo summary (aliased from the domain layer).
type HistoryState = history.State

// Resolution is the presentation of one annotation (aliased from the domain layer).
type Resolution = annotationservice.Resolution

// AnnotationListResponse wraps annotation listings.
type AnnotationListResponse struct {
	Annotations []Annotation `json:"annotations" validate:"required"`
	Total       int          `json:"total" example:"42" validate:"required"`
}

// MergeRequest is the request body for merging annotations.
type MergeRequest struct {
	IDs []string `json:"ids" example:"a,b" validate:"required"`
}

func (r MergeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDs, validation.Required, validation.Length(2, 0), validation.Each(validation.Required)),
	)
}

// SplitRequest is the request body for splitting an annotation.
type SplitRequest struct {
	Line []models.Point `json:"line" validate:"required"`
}

func (r SplitRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Line, validation.Required, validation.Length(2, 0)),
	)
}

// SplitResponse lists the pieces a split produced.
type SplitResponse struct {
	Pieces []Annotation `json:"pieces" validate:"required"`
}

// CreateLayerRequest is the request body for creating a layer.
type CreateLayerRequest struct {
	ID string `json:"id" example:"tumor" validate:"required"`
	layers.Config
}

func (r CreateLayerRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.Length(1, 128)),
	); err != nil {
		return err
	}
	return validateConfig(r.Config)
}

// UpdateLayerRequest is the request body for a partial layer update.
type UpdateLayerRequest struct {
	layers.Config
}

func (r UpdateLayerRequest) Validate() error { return validateConfig(r.Config) }

func validateConfig(c layers.Config) error {
	if c.RuleSpec != nil {
		return c.RuleSpec.Validate()
	}
	return nil
}

// LayerListResponse wraps layers in stacking order.
type LayerListResponse struct {
	Layers []Layer `json:"layers" validate:"required"`
}

// UndoResponse reports whether an undo or redo applied and the new state.
type UndoResponse struct {
	Applied bool         `json:"applied" validate:"required"`
	State   HistoryState `json:"state" validate:"required"`
}
