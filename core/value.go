package core

import (
	"fmt"
	"math"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind enumerates the closed set of variants a Value can hold. It mirrors the
// JSON data model so every Value has a lossless wire representation.
type Kind int

const (
	// KindNull is the zero Kind; the zero Value is null.
	KindNull Kind = iota
	// KindString holds UTF-8 text.
	KindString
	// KindNumber holds a float64 (JSON numbers are doubles on the wire).
	KindNumber
	// KindBool holds a boolean.
	KindBool
	// KindArray holds an ordered list of Values.
	KindArray
	// KindObject holds a string-keyed Map of Values.
	KindObject
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged variant covering string, number, bool, array, object and
// null. It replaces untyped interface{} plumbing for tool parameters and
// results: conversion to and from the wire format is total, so no runtime
// type surprises leak past package boundaries. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	arr  []Value
	obj  Map
}

// Map is a parameter mapping of field name to Value.
type Map map[string]Value

// Null returns the null Value.
func Null() Value { return Value{} }

// StringValue wraps s.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue wraps f.
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// ArrayValue wraps items without copying.
func ArrayValue(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// ObjectValue wraps m without copying.
func ObjectValue(m Map) Value { return Value{kind: KindObject, obj: m} }

// Kind reports which variant the value holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload and whether the value is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Float returns the numeric payload and whether the value is a number.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Int returns the numeric payload truncated to int64 and whether the value is
// a number.
func (v Value) Int() (int64, bool) { return int64(v.num), v.kind == KindNumber }

// Bool returns the boolean payload and whether the value is a bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Items returns the array payload and whether the value is an array.
func (v Value) Items() ([]Value, bool) { return v.arr, v.kind == KindArray }

// Fields returns the object payload and whether the value is an object.
func (v Value) Fields() (Map, bool) { return v.obj, v.kind == KindObject }

// Text renders the value as human-readable text. Strings are returned raw,
// numbers and bools via strconv, null as the empty string, and composites as
// compact JSON. Rendering never fails.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.str
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1e15 {
			return strconv.FormatInt(int64(v.num), 10)
		}
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v.Any())
		}
		return string(data)
	}
}

// Any converts the value to the equivalent interface{} shape
// (nil, string, float64, bool, []any, map[string]any).
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindArray:
		items := make([]any, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Any()
		}
		return items
	case KindObject:
		return v.obj.Any()
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) { return json.Marshal(v.Any()) }

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts an arbitrary Go value to a Value. The conversion is total:
// values without a JSON representation (channels, funcs, cyclic structures)
// degrade to their fmt text form instead of failing.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case Map:
		return ObjectValue(t)
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case float64:
		return NumberValue(t)
	case float32:
		return NumberValue(float64(t))
	case int:
		return NumberValue(float64(t))
	case int8:
		return NumberValue(float64(t))
	case int16:
		return NumberValue(float64(t))
	case int32:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case uint:
		return NumberValue(float64(t))
	case uint8:
		return NumberValue(float64(t))
	case uint16:
		return NumberValue(float64(t))
	case uint32:
		return NumberValue(float64(t))
	case uint64:
		return NumberValue(float64(t))
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return ArrayValue(items...)
	case []Value:
		return ArrayValue(t...)
	case map[string]any:
		m := make(Map, len(t))
		for k, item := range t {
			m[k] = FromAny(item)
		}
		return ObjectValue(m)
	case error:
		return StringValue(t.Error())
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return StringValue(fmt.Sprintf("%v", t))
		}
		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return StringValue(string(data))
		}
		return FromAny(decoded)
	}
}

// DecodeMap parses a JSON object document into a Map. Empty input yields an
// empty Map. Non-object documents are rejected.
func DecodeMap(data []byte) (Map, error) {
	if len(data) == 0 {
		return Map{}, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	m := make(Map, len(raw))
	for k, v := range raw {
		m[k] = FromAny(v)
	}
	return m, nil
}

// Any converts the map to its map[string]any shape.
func (m Map) Any() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Any()
	}
	return out
}

// Clone returns a shallow copy of the map. Values are immutable from the
// caller's perspective, so a shallow copy suffices for divergence.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge unions other into m. Keys present in other overwrite same-named
// existing keys. The receiver is returned for chaining; a nil receiver
// allocates.
func (m Map) Merge(other Map) Map {
	if m == nil {
		m = make(Map, len(other))
	}
	for k, v := range other {
		m[k] = v
	}
	return m
}

// EncodeJSON renders the map as a compact JSON object.
func (m Map) EncodeJSON() string {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("%v", m.Any())
	}
	return string(data)
}
