// Package document reads and writes the serialized annotation document:
// {"version": 1, "annotations": [...], "layers": [...]}.
package document

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/starford/annota/internal/apperr"
	"github.com/starford/annota/internal/layers"
	"github.com/starford/annota/internal/models"
)

// Version is the document format version.
const Version = 1

const schemaURL = "https://annota.local/schema/document-v1.schema.json"

//go:embed schema.json
var schemaJSON []byte

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// Document is the serialized form of a store and its layers.
type Document struct {
	Version     int                 `json:"version"`
	Annotations []models.Annotation `json:"annotations"`
	Layers      []Layer             `json:"layers,omitempty"`
}

// Layer is a layer as written in a document. Unset fields keep the
// manager's defaults on import.
type Layer struct {
	ID      string           `json:"id"`
	Name    *string          `json:"name,omitempty"`
	Visible *bool            `json:"visible,omitempty"`
	Locked  *bool            `json:"locked,omitempty"`
	Opacity *float64         `json:"opacity,omitempty"`
	ZIndex  *int             `json:"zIndex,omitempty"`
	Rule    *layers.RuleSpec `json:"rule,omitempty"`
}

// Config converts l to a layer configuration.
func (l Layer) Config() layers.Config {
	return layers.Config{
		Name:     l.Name,
		Visible:  l.Visible,
		Locked:   l.Locked,
		Opacity:  l.Opacity,
		ZIndex:   l.ZIndex,
		RuleSpec: l.Rule,
	}
}

// FromLayer captures every field of a managed layer.
func FromLayer(l layers.Layer) Layer {
	return Layer{
		ID:      l.ID,
		Name:    layers.Ptr(l.Name),
		Visible: layers.Ptr(l.Visible),
		Locked:  layers.Ptr(l.Locked),
		Opacity: layers.Ptr(l.Opacity),
		ZIndex:  layers.Ptr(l.ZIndex),
		Rule:    l.RuleSpec,
	}
}

// New builds a document from annotations and layers.
func New(anns []models.Annotation, ls []layers.Layer) *Document {
	doc := &Document{Version: Version, Annotations: anns}
	if doc.Annotations == nil {
		doc.Annotations = []models.Annotation{}
	}
	for _, l := range ls {
		doc.Layers = append(doc.Layers, FromLayer(l))
	}
	return doc
}

// Parse validates data against the document schema and decodes it. Every
// failure wraps apperr.ErrInvalidDocument.
func Parse(data []byte) (*Document, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("document: compile schema: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("document: %w: %w", apperr.ErrInvalidDocument, err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("document: %w: %w", apperr.ErrInvalidDocument, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("document: %w: %w", apperr.ErrInvalidDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the constraints the schema cannot express: unique ids and
// storable annotations.
func (d *Document) Validate() error {
	seen := make(map[string]struct{}, len(d.Annotations))
	for _, a := range d.Annotations {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("document: annotation %q: %w: %w", a.ID, apperr.ErrInvalidDocument, err)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("document: annotation %q: %w: %w", a.ID, apperr.ErrInvalidDocument, apperr.ErrDuplicateID)
		}
		seen[a.ID] = struct{}{}
	}
	layerIDs := make(map[string]struct{}, len(d.Layers))
	for _, l := range d.Layers {
		if _, dup := layerIDs[l.ID]; dup {
			return fmt.Errorf("document: layer %q: %w: %w", l.ID, apperr.ErrInvalidDocument, apperr.ErrDuplicateLayer)
		}
		layerIDs[l.ID] = struct{}{}
		if l.Rule != nil {
			if err := l.Rule.Validate(); err != nil {
				return fmt.Errorf("document: layer %q rule: %w: %w", l.ID, apperr.ErrInvalidDocument, err)
			}
		}
	}
	return nil
}

// Marshal encodes d with indentation.
func Marshal(d *Document) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
