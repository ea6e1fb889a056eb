// Package value implements the protocol-agnostic JSON-like tree used for
// every dynamic value in the gateway: request fields, subrequest results,
// and interpolation intermediates.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindFloat
	KindString
	KindArray
	KindObject
)

// Value is a tagged tree: Null, Bool, Integer, Float, String, Array or
// Object. Equality is structural (see Equal).
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	arr    []Value
	obj    *Object
}

// Object is an ordered String -> Value mapping. Insertion order is
// preserved for iteration and JSON marshaling.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Set inserts or overwrites a field, preserving first-insertion order.
func (o *Object) Set(key string, v Value) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the field value and whether it was present.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the field names in insertion order.
func (o *Object) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Len returns the number of fields.
func (o *Object) Len() int {
	return len(o.keys)
}

// Delete removes a field, if present.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a copy of the object's keys and fields; nested Objects and
// Arrays are shared with the original, not copied.
func (o *Object) Clone() *Object {
	n := NewObject()
	for _, k := range o.keys {
		n.Set(k, o.values[k])
	}
	return n
}

// Constructors.

// Null returns the Null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Integer wraps an integer.
func Integer(i int64) Value { return Value{kind: KindInteger, i: i} }

// Float wraps a float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array wraps an ordered sequence of values.
func Array(items []Value) Value { return Value{kind: KindArray, arr: items} }

// FromObject wraps an Object.
func FromObject(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

// Accessors. Each returns the zero value for the wrong Kind; callers
// should check Kind() first when it matters.

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Bool() bool { return v.b }
func (v Value) Integer() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) String() string { return v.s }
func (v Value) Array() []Value { return v.arr }
func (v Value) Object() *Object { return v.obj }

// Equal reports structural equality.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		// Integer and Float of equal numeric value are NOT equal;
		// the tag is part of the structure.
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInteger:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		ao, bo := a.obj, b.obj
		if ao == nil {
			ao = NewObject()
		}
		if bo == nil {
			bo = NewObject()
		}
		if ao.Len() != bo.Len() {
			return false
		}
		for _, k := range ao.keys {
			av := ao.values[k]
			bv, ok := bo.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// FromAny converts a generic Go value (as produced by encoding/json
// Unmarshal into `any`, or hand-built map[string]any/[]any trees) into a
// Value.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case float64:
		if t == float64(int64(t)) {
			return Integer(int64(t))
		}
		return Float(t)
	case int:
		return Integer(int64(t))
	case int64:
		return Integer(t)
	case float32:
		return Float(float64(t))
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromAny(e)
		}
		return Array(items)
	case map[string]any:
		o := NewObject()
		// map iteration order is not stable; sort keys so output is
		// deterministic even though JSON object key order is not
		// semantically meaningful for ordinary decode results.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			o.Set(k, FromAny(t[k]))
		}
		return FromObject(o)
	case Value:
		return t
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// ToAny converts a Value back into a generic Go value suitable for
// encoding/json Marshal.
func ToAny(v Value) any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = ToAny(e)
		}
		return out
	case KindObject:
		out := make(map[string]any)
		if v.obj != nil {
			for _, k := range v.obj.keys {
				out[k] = ToAny(v.obj.values[k])
			}
		}
		return out
	}
	return nil
}

// ParseJSON decodes raw JSON bytes into a Value, preserving object key
// order (encoding/json's map[string]any loses order, so this walks the
// token stream directly).
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

// ParseJSONReader decodes a JSON document read from r into a Value,
// preserving object key order the same way ParseJSON does.
func ParseJSONReader(r io.Reader) (Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return decodeValue(dec)
}

// WriteJSON encodes v as JSON directly to w, preserving Object insertion
// order. Routing through ToAny's map[string]any would let encoding/json
// re-sort keys alphabetically, losing the "result order" the Client
// Registry and Response Transformer both depend on.
func WriteJSON(w io.Writer, v Value) error {
	b, err := encodeValue(v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// encodeValue marshals v, walking Objects by Keys() order instead of
// going through a Go map.
func encodeValue(v Value) ([]byte, error) {
	switch v.kind {
	case KindNull, KindBool, KindInteger, KindFloat, KindString:
		return json.Marshal(ToAny(v))
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := encodeValue(e)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		var buf bytes.Buffer
		buf.WriteByte('{')
		if v.obj != nil {
			for i, k := range v.obj.keys {
				if i > 0 {
					buf.WriteByte(',')
				}
				kb, err := json.Marshal(k)
				if err != nil {
					return nil, err
				}
				buf.Write(kb)
				buf.WriteByte(':')
				vb, err := encodeValue(v.obj.values[k])
				if err != nil {
					return nil, err
				}
				buf.Write(vb)
			}
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("value: unknown kind %d", v.kind)
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			o := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, _ := keyTok.(string)
				v, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				o.Set(key, v)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return FromObject(o), nil
		case '[':
			var items []Value
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return Array(items), nil
		}
		return Value{}, fmt.Errorf("value: unexpected delimiter %v", t)
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Integer(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	}
	return Value{}, fmt.Errorf("value: unsupported token %T", tok)
}

// MarshalJSON implements idempotent JSON serialization: parse(serialize(v))
// reproduces the same Value, with Object fields in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	return encodeValue(v)
}

// UnmarshalJSON implements json.Unmarshaler by routing through ParseJSON so
// object key order is preserved.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
