package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// ValueKind identifies the variant held by a Value.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
	ValueMap
	ValueList
)

// Value is one entry of an annotation's property bag.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	m    map[string]Value
	l    []Value
}

func StringValue(s string) Value { return Value{kind: ValueString, str: s} }
func NumberValue(n float64) Value { return Value{kind: ValueNumber, num: n} }
func BoolValue(b bool) Value { return Value{kind: ValueBool, b: b} }
func MapValue(m map[string]Value) Value { return Value{kind: ValueMap, m: m} }
func ListValue(l ...Value) Value { return Value{kind: ValueList, l: l} }
func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool { return v.kind == ValueNull }
func (v Value) AsString() (string, bool) { return v.str, v.kind == ValueString }
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == ValueNumber }
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == ValueBool }
func (v Value) AsMap() (Properties, bool) { return v.m, v.kind == ValueMap }
func (v Value) AsList() ([]Value, bool) { return v.l, v.kind == ValueList }

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueString:
		return v.str == o.str
	case ValueNumber:
		return v.num == o.num
	case ValueBool:
		return v.b == o.b
	case ValueMap:
		return Properties(v.m).Equal(o.m)
	case ValueList:
		return slices.EqualFunc(v.l, o.l, Value.Equal)
	}
	return true
}

func (v Value) clone() Value {
	switch v.kind {
	case ValueMap:
		return MapValue(Properties(v.m).Clone())
	case ValueList:
		l := make([]Value, len(v.l))
		for i, e := range v.l {
			l[i] = e.clone()
		}
		return ListValue(l...)
	}
	return v
}

// MarshalJSON encodes the held variant as its plain JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueString:
		return json.Marshal(v.str)
	case ValueNumber:
		return json.Marshal(v.num)
	case ValueBool:
		return json.Marshal(v.b)
	case ValueMap:
		return json.Marshal(v.m)
	case ValueList:
		if v.l == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.l)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts strings, numbers, booleans, objects, arrays and null.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out, err := valueFrom(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func valueFrom(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return StringValue(x), nil
	case float64:
		return NumberValue(x), nil
	case bool:
		return BoolValue(x), nil
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			ev, err := valueFrom(e)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = ev
		}
		return MapValue(m), nil
	case []any:
		l := make([]Value, len(x))
		for i, e := range x {
			ev, err := valueFrom(e)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			l[i] = ev
		}
		return ListValue(l...), nil
	}
	return Value{}, fmt.Errorf("models: unsupported property value %T", raw)
}

// Properties is the open key/value bag attached to an annotation.
// Accessors never panic: a missing or mistyped key reports ok=false.
type Properties map[string]Value

func (p Properties) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	return v.AsString()
}

func (p Properties) Number(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}

func (p Properties) Bool(key string) (bool, bool) {
	v, ok := p[key]
	if !ok {
		return false, false
	}
	return v.AsBool()
}

func (p Properties) Map(key string) (Properties, bool) {
	v, ok := p[key]
	if !ok {
		return nil, false
	}
	return v.AsMap()
}

func (p Properties) List(key string) ([]Value, bool) {
	v, ok := p[key]
	if !ok {
		return nil, false
	}
	return v.AsList()
}

// Clone returns a deep copy.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v.clone()
	}
	return out
}

// Equal reports deep equality; nil and empty are equal.
func (p Properties) Equal(o Properties) bool {
	return maps.EqualFunc(p, o, Value.Equal)
}
