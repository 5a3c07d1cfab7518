package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// encodeBuffers holds scratch buffers for value encoding
var encodeBuffers = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// Document represents a JSON document in the collection.
// Field order is preserved: fields keep the position they were first set at,
// and documents decoded from disk keep the order of the file.
type Document struct {
	keys   []string
	values map[string]interface{}
}

// NewDocument creates an empty document
func NewDocument() *Document {
	return &Document{values: make(map[string]interface{})}
}

// FromMap builds a document from a plain map.
// Go maps are unordered, so fields are added in sorted key order.
func FromMap(m map[string]interface{}) *Document {
	doc := NewDocument()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		doc.Set(k, m[k])
	}
	return doc
}

// Len returns the number of fields
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys returns the field names in order
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Get returns the value of a top-level field and whether it exists.
// A field holding null reports (nil, true).
func (d *Document) Get(key string) (interface{}, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.values[key]
	return v, ok
}

// Has reports whether a top-level field exists
func (d *Document) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Set sets a top-level field. New fields are appended.
func (d *Document) Set(key string, value interface{}) {
	if d.values == nil {
		d.values = make(map[string]interface{})
	}
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = normalizeValue(value)
}

// SetFirst sets a field and moves it to the front of the document
func (d *Document) SetFirst(key string, value interface{}) {
	if d.values == nil {
		d.values = make(map[string]interface{})
	}
	d.removeKey(key)
	d.keys = append([]string{key}, d.keys...)
	d.values[key] = normalizeValue(value)
}

// Delete removes a top-level field
func (d *Document) Delete(key string) {
	if _, exists := d.values[key]; !exists {
		return
	}
	d.removeKey(key)
	delete(d.values, key)
}

func (d *Document) removeKey(key string) {
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			return
		}
	}
}

// ID returns the value of the primary key field as a string
func (d *Document) ID(field string) (string, bool) {
	v, ok := d.Get(field)
	if !ok || v == nil {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, true
	case json.Number:
		return id.String(), true
	default:
		return fmt.Sprintf("%v", id), true
	}
}

// GetPath reads a value at a dot-notation path (e.g. "other.email").
// Numeric segments index into arrays.
func (d *Document) GetPath(path string) (interface{}, bool) {
	var current interface{} = d
	for _, key := range splitPath(path) {
		switch node := current.(type) {
		case *Document:
			v, ok := node.Get(key)
			if !ok {
				return nil, false
			}
			current = v
		case []interface{}:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// SetPath sets a value at the given dot-notation path.
// Missing or non-object intermediate values are replaced by new documents.
func (d *Document) SetPath(path string, value interface{}) {
	keys := splitPath(path)

	current := d
	for i := 0; i < len(keys)-1; i++ {
		key := keys[i]
		val, exists := current.values[key]

		if next, ok := val.(*Document); exists && ok {
			current = next
			continue
		}

		// Arrays are only traversed when the next segment is a valid index
		if arr, ok := val.([]interface{}); ok {
			idx, err := strconv.Atoi(keys[i+1])
			if err == nil && idx >= 0 && idx < len(arr) {
				if i+1 == len(keys)-1 {
					arr[idx] = normalizeValue(value)
					return
				}
				if next, ok := arr[idx].(*Document); ok {
					current = next
					i++
					continue
				}
			}
		}

		next := NewDocument()
		current.Set(key, next)
		current = next
	}

	current.Set(keys[len(keys)-1], value)
}

// DeletePath removes the value at a dot-notation path.
// Unreachable paths are ignored.
func (d *Document) DeletePath(path string) {
	keys := splitPath(path)
	if len(keys) == 0 {
		return
	}

	var parent interface{} = d
	if len(keys) > 1 {
		p, ok := d.GetPath(joinPath(keys[:len(keys)-1]))
		if !ok {
			return
		}
		parent = p
	}
	if doc, isDoc := parent.(*Document); isDoc {
		doc.Delete(keys[len(keys)-1])
	}
}

// Clone creates a deep copy of the document
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	clone := &Document{
		keys:   make([]string, len(d.keys)),
		values: make(map[string]interface{}, len(d.values)),
	}
	copy(clone.keys, d.keys)
	for k, v := range d.values {
		clone.values[k] = deepCopyValue(v)
	}
	return clone
}

// deepCopyValue creates a deep copy of a value
func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case *Document:
		return val.Clone()
	case []interface{}:
		cp := make([]interface{}, len(val))
		for i, item := range val {
			cp[i] = deepCopyValue(item)
		}
		return cp
	default:
		// Primitives (string, number, bool) are immutable or copied by value
		return val
	}
}

// ToMap converts the document into plain Go values.
// Nested documents become maps and numbers become int64 or float64.
func (d *Document) ToMap() map[string]interface{} {
	if d == nil {
		return nil
	}
	out := make(map[string]interface{}, len(d.keys))
	for _, k := range d.keys {
		out[k] = plainValue(d.values[k])
	}
	return out
}

func plainValue(v interface{}) interface{} {
	switch val := v.(type) {
	case *Document:
		return val.ToMap()
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return val
	}
}

// normalizeValue converts caller supplied maps and slices into the
// representation used inside documents.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return FromMap(val)
	case Document:
		return &val
	case *Document:
		if val == nil {
			return nil
		}
		return val
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = FromMap(item)
		}
		return out
	case []*Document:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case []string:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	default:
		return val
	}
}

// ApplyPatch merges a patch into the document.
// It supports dot notation for nested updates (e.g., "settings.theme": "dark")
// and a "$unset" entry listing paths to delete. Sets are applied in key order.
func (d *Document) ApplyPatch(patch map[string]interface{}) {
	// 1. Handle Deletions first ($unset)
	if unset, ok := patch["$unset"]; ok {
		switch fields := unset.(type) {
		case map[string]interface{}:
			for path := range fields {
				d.DeletePath(path)
			}
		case []string:
			for _, path := range fields {
				d.DeletePath(path)
			}
		case []interface{}:
			for _, path := range fields {
				if p, ok := path.(string); ok {
					d.DeletePath(p)
				}
			}
		}
	}

	// 2. Handle Sets
	keys := make([]string, 0, len(patch))
	for k := range patch {
		if k == "$unset" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if d.Has(k) {
			d.Set(k, patch[k])
			continue
		}
		d.SetPath(k, patch[k])
	}
}

// MarshalJSON encodes the document as a JSON object in field order
func (d *Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := encodeValue(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := encodeValue(d.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the order of its fields.
// Numbers are kept as json.Number so they round-trip unchanged.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document must be a JSON object")
	}
	doc, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}

// Serialize converts a document to JSON bytes
func (d *Document) Serialize() ([]byte, error) {
	data, err := d.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize document: %w", err)
	}
	return data, nil
}

// DeserializeDocument creates a document from JSON bytes
func DeserializeDocument(data []byte) (*Document, error) {
	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to deserialize document: %w", err)
	}
	return doc, nil
}

func encodeValue(v interface{}) ([]byte, error) {
	buf := encodeBuffers.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		encodeBuffers.Put(buf)
	}()

	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}

	// Encode appends a newline
	b := buf.Bytes()
	if len(b) > 0 && b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}

	// Copy to new slice, the buffer is reused
	result := make([]byte, len(b))
	copy(result, b)
	return result, nil
}

func decodeObject(dec *json.Decoder) (*Document, error) {
	doc := NewDocument()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		if _, exists := doc.values[key]; !exists {
			doc.keys = append(doc.keys, key)
		}
		doc.values[key] = val
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		// string, json.Number, bool or nil
		return tok, nil
	}
	switch delim {
	case '{':
		return decodeObject(dec)
	case '[':
		arr := make([]interface{}, 0)
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		// closing ']'
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}

func splitPath(path string) []string {
	// "a.b.c" -> ["a", "b", "c"]
	// This does not handle escaped dots.
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

func joinPath(keys []string) string {
	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte('.')
		}
		buf.WriteString(k)
	}
	return buf.String()
}
