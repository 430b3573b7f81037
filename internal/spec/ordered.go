package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"slices"

	"github.com/speakeasy-api/openapi/sequencedmap"
)

// OrderedMap is a string-keyed map that remembers insertion order. Setting an
// existing key replaces its value in place and keeps its original position.
type OrderedMap[V any] struct {
	m *sequencedmap.Map[string, V]
}

// NewOrderedMap returns an empty map ready for use.
func NewOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{m: sequencedmap.New[string, V]()}
}

func (m *OrderedMap[V]) inner() *sequencedmap.Map[string, V] {
	if m == nil {
		return nil
	}
	return m.m
}

func (m *OrderedMap[V]) Set(key string, value V) {
	if m.m == nil {
		m.m = sequencedmap.New[string, V]()
	}
	if !m.m.Has(key) {
		m.m.Set(key, value)
		return
	}
	elems := make([]*sequencedmap.Element[string, V], 0, m.m.Len())
	for k, v := range m.m.All() {
		if k == key {
			v = value
		}
		elems = append(elems, sequencedmap.NewElem(k, v))
	}
	m.m = sequencedmap.New(elems...)
}

func (m *OrderedMap[V]) Get(key string) (V, bool) { return m.inner().Get(key) }

func (m *OrderedMap[V]) Has(key string) bool { return m.inner().Has(key) }

func (m *OrderedMap[V]) Len() int { return m.inner().Len() }

// Keys returns the keys in insertion order.
func (m *OrderedMap[V]) Keys() []string {
	if m.Len() == 0 {
		return nil
	}
	return slices.Collect(m.inner().Keys())
}

// First returns the earliest inserted entry.
func (m *OrderedMap[V]) First() (string, V, bool) {
	for k, v := range m.All() {
		return k, v, true
	}
	var zero V
	return "", zero, false
}

// All iterates the entries in insertion order.
func (m *OrderedMap[V]) All() iter.Seq2[string, V] { return m.inner().All() }

func (m *OrderedMap[V]) MarshalJSON() ([]byte, error) {
	if m.inner() == nil {
		return []byte("{}"), nil
	}
	return m.m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object keeping its key order. When V is any,
// nested objects decode as *OrderedMap[any] so their order survives too.
func (m *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	m.m = sequencedmap.New[string, V]()
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)
		var v V
		if p, ok := any(&v).(*any); ok {
			*p, err = decodeValue(dec)
		} else {
			err = dec.Decode(&v)
		}
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		m.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// decodeValue reads the next JSON value from dec. Objects become
// *OrderedMap[any], arrays []any and numbers float64.
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		obj := NewOrderedMap[any]()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := kt.(string)
			v, err := decodeValue(dec)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			obj.Set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		list := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", d)
}

// Plain converts ordered objects inside v to map[string]any, recursively.
// Other values are returned as they are.
func Plain(v any) any {
	switch val := v.(type) {
	case *OrderedMap[any]:
		if val == nil {
			return nil
		}
		out := make(map[string]any, val.Len())
		for k, child := range val.All() {
			out[k] = Plain(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = Plain(child)
		}
		return out
	}
	return v
}
