package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// Value is a tagged union over the JSON-compatible types a Context may hold.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
	m    map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue wraps a number.
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// ListValue wraps an ordered list of values.
func ListValue(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value{}, items...)}
}

// MapValue wraps a nested mapping.
func MapValue(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// ValueOf converts a loosely typed Go value (as produced by encoding/json or yaml.v3)
// into a Value. Unsupported types are stringified with fmt.
func ValueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
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
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return NumberValue(f)
		}
		return StringValue(t.String())
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = StringValue(s)
		}
		return Value{kind: KindList, list: items}
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = ValueOf(item)
		}
		return Value{kind: KindList, list: items}
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = ValueOf(item)
		}
		return Value{kind: KindMap, m: m}
	case map[any]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[fmt.Sprint(k)] = ValueOf(item)
		}
		return Value{kind: KindMap, m: m}
	default:
		return StringValue(fmt.Sprint(t))
	}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Truthy follows loose scripting semantics: null, "", 0, NaN and false are falsy;
// lists and maps are always truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindString:
		return v.str != ""
	case KindNumber:
		return v.num != 0 && v.num == v.num
	case KindBool:
		return v.b
	case KindList, KindMap:
		return true
	default:
		return false
	}
}

// Text returns the raw string if v holds a string.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// String renders v for text substitution. Scalars render bare, lists and maps render as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList, KindMap:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

// Interface converts v back into plain Go values (string, float64, bool, []any, map[string]any, nil).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}

// Context is the open key/value bag supplied by the caller when a protocol starts.
// It is consulted for conditional evaluation and command-template substitution.
type Context map[string]Value

// ContextFrom converts a loosely typed map (e.g. decoded JSON arguments) into a Context.
func ContextFrom(m map[string]any) Context {
	c := make(Context, len(m))
	for k, v := range m {
		c[k] = ValueOf(v)
	}
	return c
}

// Lookup returns the value stored under key, treating null as absent.
func (c Context) Lookup(key string) (Value, bool) {
	v, ok := c[key]
	if !ok || v.IsNull() {
		return Value{}, false
	}
	return v, true
}

// Truthy reports the truthiness of the value stored under key (false when absent).
func (c Context) Truthy(key string) bool {
	return c[key].Truthy()
}

// Text returns the string stored under key. Non-string values are reported as absent.
func (c Context) Text(key string) (string, bool) {
	return c[key].Text()
}

// Clone returns a shallow copy of the context.
func (c Context) Clone() Context {
	cp := make(Context, len(c))
	for k, v := range c {
		cp[k] = v
	}
	return cp
}

// Map converts the context back into plain Go values.
func (c Context) Map() map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v.Interface()
	}
	return out
}
