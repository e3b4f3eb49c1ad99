package schema

import (
	"bytes"
	"encoding/json"
)

// Document is a serialized resource instance. It keeps schema order when
// encoded as JSON.
type Document struct {
	keys   []string
	values map[string]any
}

func newDocument(size int) Document {
	return Document{
		keys:   make([]string, 0, size),
		values: make(map[string]any, size),
	}
}

func (d *Document) set(key string, value any) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value for key.
func (d Document) Get(key string) any {
	return d.values[key]
}

// Keys returns the keys in schema order.
func (d Document) Keys() []string {
	return append([]string(nil), d.keys...)
}

// Map returns a copy of the document as a plain map.
func (d Document) Map() map[string]any {
	out := make(map[string]any, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the document as an object in schema order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
