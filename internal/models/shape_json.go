package models

import (
	"encoding/json"
	"fmt"
)

// MarshalShape encodes s as {"type": kind, ...fields, "bounds": {...}}.
// The bounds are written for consumers; they are recomputed on decode.
func MarshalShape(s Shape) ([]byte, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields["type"], err = json.Marshal(s.Kind()); err != nil {
		return nil, err
	}
	if fields["bounds"], err = json.Marshal(s.Bounds()); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// UnmarshalShape decodes a tagged shape.
func UnmarshalShape(data []byte) (Shape, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case KindPoint:
		return decodeShape[PointShape](data)
	case KindCircle:
		return decodeShape[Circle](data)
	case KindEllipse:
		return decodeShape[Ellipse](data)
	case KindRectangle:
		return decodeShape[Rectangle](data)
	case KindLine:
		return decodeShape[Line](data)
	case KindPolygon:
		return decodeShape[Polygon](data)
	case KindFreehand:
		return decodeShape[Freehand](data)
	case KindPath:
		return decodeShape[Path](data)
	case KindMultiPolygon:
		return decodeShape[MultiPolygon](data)
	case KindImage, kindImageShort:
		return decodeShape[ImageRegion](data)
	case "":
		return nil, fmt.Errorf("models: shape type is missing")
	}
	return nil, fmt.Errorf("models: unknown shape type %q", head.Type)
}

func decodeShape[T Shape](data []byte) (Shape, error) {
	var s T
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("models: decode %s: %w", s.Kind(), err)
	}
	return s, nil
}
