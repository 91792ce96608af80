package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Truthy(t *testing.T) {
	assert.False(t, Null().Truthy())
	assert.False(t, StringValue("").Truthy())
	assert.False(t, NumberValue(0).Truthy())
	assert.False(t, NumberValue(math.NaN()).Truthy())
	assert.False(t, BoolValue(false).Truthy())

	assert.True(t, StringValue("0").Truthy())
	assert.True(t, NumberValue(-1).Truthy())
	assert.True(t, BoolValue(true).Truthy())
	assert.True(t, ListValue().Truthy())
	assert.True(t, MapValue(nil).Truthy())
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "fix bug", StringValue("fix bug").String())
	assert.Equal(t, "3", NumberValue(3).String())
	assert.Equal(t, "2.5", NumberValue(2.5).String())
	assert.Equal(t, "true", BoolValue(true).String())
	assert.Equal(t, `["a",1]`, ListValue(StringValue("a"), NumberValue(1)).String())
	assert.Equal(t, `{"a":"x","b":false}`, MapValue(map[string]Value{"b": BoolValue(false), "a": StringValue("x")}).String())
	assert.Equal(t, "", Null().String())
}

func TestContext_JSONRoundTrip(t *testing.T) {
	in := ContextFrom(map[string]any{
		"s":    "x",
		"n":    7,
		"b":    true,
		"nil":  nil,
		"list": []any{"a", 1.5},
		"map":  map[string]any{"k": "v"},
	})

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Context
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, in.Map(), out.Map())
	_, ok := out.Lookup("nil")
	assert.False(t, ok)
	assert.Equal(t, KindList, out["list"].Kind())
}

func TestValueOf_Fallback(t *testing.T) {
	v := ValueOf(5 * time.Second)
	assert.Equal(t, KindString, v.Kind())
	assert.Equal(t, "5s", v.String())

	type custom struct{ A int }
	assert.Equal(t, "{1}", ValueOf(custom{A: 1}).String())
}
