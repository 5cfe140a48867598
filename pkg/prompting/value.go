package prompting

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Value is the closed set of document value kinds the resolver walks.
// Every kind a template document can contain is enumerated here, so the
// structural resolver dispatches exhaustively and a new container kind
// cannot be added without the resolver failing to handle it visibly.
type Value interface {
	isValue()
}

// String is a text leaf; the only kind placeholders are resolved in.
type String string

// Number is a JSON number, kept in its source representation so that
// resolving a document never reformats numeric fields.
type Number json.Number

// Bool is a JSON boolean.
type Bool bool

// Null is a JSON null.
type Null struct{}

// Array is an ordered sequence.
type Array []Value

// Object is a mapping. Keys are never treated as placeholder sources.
type Object map[string]Value

// Set is an unordered collection. JSON has no set literal, so sets only
// occur in documents assembled programmatically; resolution collapses
// duplicates the way set semantics require.
type Set []Value

func (String) isValue() {}
func (Number) isValue() {}
func (Bool) isValue()   {}
func (Null) isValue()   {}
func (Array) isValue()  {}
func (Object) isValue() {}
func (Set) isValue()    {}

// FromGo converts a dynamically typed JSON-like value (as produced by
// encoding/json with UseNumber, or assembled by a caller) into a Value.
// Values pass through unchanged so documents can mix both forms.
func FromGo(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Number(fmt.Sprintf("%d", t)), nil
	case int64:
		return Number(fmt.Sprintf("%d", t)), nil
	case float64:
		n, err := json.Marshal(t)
		if err != nil {
			return nil, newErrorf("unrepresentable number %v: %v", t, err)
		}
		return Number(n), nil
	case []any:
		arr := make(Array, len(t))
		for i, elem := range t {
			converted, err := FromGo(elem)
			if err != nil {
				return nil, err
			}
			arr[i] = converted
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(t))
		for key, elem := range t {
			converted, err := FromGo(elem)
			if err != nil {
				return nil, err
			}
			obj[key] = converted
		}
		return obj, nil
	}
	return nil, newErrorf("unsupported document value of type %T", v)
}

// ToGo converts a Value back into the dynamically typed form accepted by
// encoding/json. Sets become plain slices.
func ToGo(v Value) any {
	switch t := v.(type) {
	case String:
		return string(t)
	case Number:
		return json.Number(t)
	case Bool:
		return bool(t)
	case Null:
		return nil
	case Array:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = ToGo(elem)
		}
		return out
	case Set:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = ToGo(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(t))
		for key, elem := range t {
			out[key] = ToGo(elem)
		}
		return out
	}
	return nil
}

// decodeJSON parses raw JSON into a Value, preserving number formatting.
func decodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromGo(raw)
}

// canonicalKey produces a stable identity string for set deduplication.
// encoding/json sorts map keys, so equal objects encode identically.
func canonicalKey(v Value) string {
	encoded, err := json.Marshal(ToGo(v))
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(encoded)
}
