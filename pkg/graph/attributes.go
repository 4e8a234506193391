package graph

import (
	"bytes"
	"encoding/json"
)

// Attributes is an insertion-ordered property set. Graph consumers render
// nodes and edges straight from JSON, so key order is kept stable.
type Attributes struct {
	keys   []string
	values map[string]any
}

// Set stores value under key, keeping the position of an existing key.
func (a *Attributes) Set(key string, value any) {
	if a.values == nil {
		a.values = make(map[string]any)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Get returns the value stored under key.
func (a *Attributes) Get(key string) (any, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (a *Attributes) Keys() []string {
	return append([]string(nil), a.keys...)
}

// Len returns the number of attributes
func (a *Attributes) Len() int {
	return len(a.keys)
}

// Map returns a copy of the attributes as a plain map.
func (a *Attributes) Map() map[string]any {
	m := make(map[string]any, len(a.keys))
	for _, k := range a.keys {
		m[k] = a.values[k]
	}
	return m
}

type field struct {
	key   string
	value any
}

// marshalObject writes fixed fields first, then attributes in insertion
// order, skipping attribute keys that collide with a fixed field.
func marshalObject(fixed []field, attrs *Attributes, trailing []field) ([]byte, error) {
	reserved := make(map[string]bool, len(fixed)+len(trailing))
	for _, f := range fixed {
		reserved[f.key] = true
	}
	for _, f := range trailing {
		reserved[f.key] = true
	}

	all := append([]field(nil), fixed...)
	if attrs != nil {
		for _, k := range attrs.keys {
			if reserved[k] {
				continue
			}
			all = append(all, field{key: k, value: attrs.values[k]})
		}
	}
	all = append(all, trailing...)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range all {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// unmarshalObject splits a JSON object into the fixed fields (decoded by
// the caller) and the remaining attributes in document order.
func unmarshalObject(data []byte, fixed map[string]bool) (map[string]json.RawMessage, *Attributes, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}

	raw := make(map[string]json.RawMessage)
	attrs := &Attributes{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := tok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		if fixed[key] {
			raw[key] = value
			continue
		}

		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, nil, err
		}
		attrs.Set(key, v)
	}
	return raw, attrs, nil
}
