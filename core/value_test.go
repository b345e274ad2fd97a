package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKinds(t *testing.T) {
	assert.Equal(t, KindNull, Null().Kind())
	assert.Equal(t, KindString, StringValue("x").Kind())
	assert.Equal(t, KindNumber, NumberValue(1).Kind())
	assert.Equal(t, KindBool, BoolValue(true).Kind())
	assert.Equal(t, KindArray, ArrayValue(NumberValue(1)).Kind())
	assert.Equal(t, KindObject, ObjectValue(Map{"a": Null()}).Kind())

	// zero Value is null
	var zero Value
	assert.True(t, zero.IsNull())
}

func TestValueText(t *testing.T) {
	assert.Equal(t, "hello", StringValue("hello").Text())
	assert.Equal(t, "5", NumberValue(5).Text())
	assert.Equal(t, "2.5", NumberValue(2.5).Text())
	assert.Equal(t, "true", BoolValue(true).Text())
	assert.Equal(t, "", Null().Text())
	assert.Equal(t, `{"a":1}`, ObjectValue(Map{"a": NumberValue(1)}).Text())
	assert.Equal(t, `[1,"x"]`, ArrayValue(NumberValue(1), StringValue("x")).Text())
}

func TestFromAny(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null()},
		{"string", "s", StringValue("s")},
		{"int", 3, NumberValue(3)},
		{"int64", int64(4), NumberValue(4)},
		{"float", 1.5, NumberValue(1.5)},
		{"bool", true, BoolValue(true)},
		{"slice", []any{1.0, "x"}, ArrayValue(NumberValue(1), StringValue("x"))},
		{"map", map[string]any{"k": "v"}, ObjectValue(Map{"k": StringValue("v")})},
		{"value passthrough", StringValue("p"), StringValue("p")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FromAny(tc.in))
		})
	}
}

func TestFromAnyStruct(t *testing.T) {
	type point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	v := FromAny(point{X: 1, Y: 2})
	fields, ok := v.Fields()
	require.True(t, ok)
	assert.Equal(t, NumberValue(1), fields["x"])
	assert.Equal(t, NumberValue(2), fields["y"])
}

func TestFromAnyUnrepresentable(t *testing.T) {
	// Values without a JSON form must degrade to text, never fail.
	v := FromAny(func() {})
	_, isString := v.Str()
	assert.True(t, isString)
	assert.NotEmpty(t, v.Text())
}

func TestDecodeMap(t *testing.T) {
	m, err := DecodeMap([]byte(`{"a":2,"b":"x","c":[true]}`))
	require.NoError(t, err)
	assert.Equal(t, NumberValue(2), m["a"])
	assert.Equal(t, StringValue("x"), m["b"])
	assert.Equal(t, ArrayValue(BoolValue(true)), m["c"])

	empty, err := DecodeMap(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = DecodeMap([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestMapMerge(t *testing.T) {
	m := Map{"a": NumberValue(1), "b": StringValue("old")}
	m = m.Merge(Map{"b": StringValue("new"), "c": BoolValue(true)})
	assert.Equal(t, NumberValue(1), m["a"])
	assert.Equal(t, StringValue("new"), m["b"])
	assert.Equal(t, BoolValue(true), m["c"])

	var nilMap Map
	merged := nilMap.Merge(Map{"x": Null()})
	assert.Contains(t, merged, "x")
}

func TestValueJSONRoundTrip(t *testing.T) {
	original := ObjectValue(Map{
		"s": StringValue("text"),
		"n": NumberValue(1.5),
		"a": ArrayValue(BoolValue(false), Null()),
	})
	data, err := original.MarshalJSON()
	require.NoError(t, err)

	var decoded Value
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, original, decoded)
}
