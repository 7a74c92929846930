package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OptionsDoc is an opaque, ordered key → JSON-value document. The backend
// contract for job options is intentionally open-ended, so values are kept as
// raw JSON and key order is preserved across decode/encode round-trips.
type OptionsDoc struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewOptionsDoc builds a document from alternating key, raw-JSON-value pairs.
func NewOptionsDoc(pairs ...any) (*OptionsDoc, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("options document requires key/value pairs")
	}
	doc := &OptionsDoc{values: map[string]json.RawMessage{}}
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("options document key %d is not a string", i/2)
		}
		raw, err := json.Marshal(pairs[i+1])
		if err != nil {
			return nil, fmt.Errorf("failed to encode option %q: %w", key, err)
		}
		doc.Set(key, raw)
	}
	return doc, nil
}

// Len returns the number of keys in the document. A nil document has length 0.
func (d *OptionsDoc) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys returns the document's keys in insertion order.
func (d *OptionsDoc) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Get returns the raw JSON value for key.
func (d *OptionsDoc) Get(key string) (json.RawMessage, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.values[key]
	return v, ok
}

// GetString returns the value for key when it is a JSON string.
func (d *OptionsDoc) GetString(key string) (string, bool) {
	raw, ok := d.Get(key)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Set inserts or replaces the raw JSON value for key, appending new keys at
// the end of the order.
func (d *OptionsDoc) Set(key string, raw json.RawMessage) {
	if d.values == nil {
		d.values = map[string]json.RawMessage{}
	}
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = append(json.RawMessage(nil), raw...)
}

// Delete removes key from the document.
func (d *OptionsDoc) Delete(key string) {
	if d == nil {
		return
	}
	if _, exists := d.values[key]; !exists {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy. Cloning nil yields nil.
func (d *OptionsDoc) Clone() *OptionsDoc {
	if d == nil {
		return nil
	}
	out := &OptionsDoc{values: make(map[string]json.RawMessage, len(d.values))}
	for _, k := range d.keys {
		out.Set(k, d.values[k])
	}
	return out
}

// Equal reports whether two documents carry the same keys, order and values.
func (d *OptionsDoc) Equal(other *OptionsDoc) bool {
	if d.Len() != other.Len() {
		return false
	}
	for i, k := range d.Keys() {
		if other.keys[i] != k {
			return false
		}
		if !bytes.Equal(d.values[k], other.values[k]) {
			return false
		}
	}
	return true
}

// Merge returns a new document with other's keys overwriting or appending to
// the receiver's.
func (d *OptionsDoc) Merge(other *OptionsDoc) *OptionsDoc {
	out := d.Clone()
	if out == nil {
		return other.Clone()
	}
	if other != nil {
		for _, k := range other.keys {
			out.Set(k, other.values[k])
		}
	}
	return out
}

// Diff returns the keys whose values in other differ from (or are absent in)
// the receiver, plus the receiver's keys missing from other.
func (d *OptionsDoc) Diff(other *OptionsDoc) (changed *OptionsDoc, removed []string) {
	changed = &OptionsDoc{values: map[string]json.RawMessage{}}
	if other != nil {
		for _, k := range other.keys {
			if cur, ok := d.Get(k); !ok || !bytes.Equal(cur, other.values[k]) {
				changed.Set(k, other.values[k])
			}
		}
	}
	for _, k := range d.Keys() {
		if _, ok := other.Get(k); !ok {
			removed = append(removed, k)
		}
	}
	return changed, removed
}

// MarshalJSON encodes the document as a JSON object with keys in insertion
// order.
func (d *OptionsDoc) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(d.values[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order.
func (d *OptionsDoc) UnmarshalJSON(data []byte) error {
	d.keys = nil
	d.values = map[string]json.RawMessage{}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("options document must be a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("options document key is not a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		d.Set(key, raw)
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
