package bunjson

import (
	"github.com/kartikbazzad/bunbase/bunjson/internal/query"
	"github.com/kartikbazzad/bunbase/bunjson/storage"
)

// Document is an ordered JSON record
type Document = storage.Document

// DocumentSet is an ordered mapping of id to record
type DocumentSet = storage.DocumentSet

// NewDocument creates an empty record
func NewDocument() *Document {
	return storage.NewDocument()
}

// FromMap builds a record from a plain map, fields in sorted key order
func FromMap(m map[string]interface{}) *Document {
	return storage.FromMap(m)
}

// Row is the view of one record handed to predicates, mappers and
// comparators. It shares the underlying document: Set and Unset change it.
type Row struct {
	doc *Document
	key string
}

// NewRow wraps a document
func NewRow(doc *Document) Row {
	if doc == nil {
		doc = storage.NewDocument()
	}
	return Row{doc: doc}
}

func newKeyedRow(key string, doc *Document) Row {
	r := NewRow(doc)
	r.key = key
	return r
}

// Key returns the working set key the row was read from
func (r Row) Key() string {
	return r.key
}

// Get reads a field. An exact key wins; otherwise the name is treated as a
// dotted path into nested records and arrays ("other.email", "tags.0").
// A missing field reports (nil, false), a null one (nil, true).
func (r Row) Get(field string) (interface{}, bool) {
	if v, ok := r.doc.Get(field); ok {
		return v, true
	}
	return r.doc.GetPath(field)
}

// Value is Get without the presence flag
func (r Row) Value(field string) interface{} {
	v, _ := r.Get(field)
	return v
}

// Float reads a numeric field
func (r Row) Float(field string) (float64, bool) {
	v, ok := r.Get(field)
	if !ok {
		return 0, false
	}
	return query.ToFloat(v)
}

// String reads a string field
func (r Row) String(field string) (string, bool) {
	v, ok := r.Get(field)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Has reports whether a field or dotted path exists
func (r Row) Has(field string) bool {
	_, ok := r.Get(field)
	return ok
}

// Set writes a field. An existing exact key is overwritten in place,
// anything else is set as a dotted path creating intermediate records.
func (r Row) Set(field string, value interface{}) {
	if r.doc.Has(field) {
		r.doc.Set(field, value)
		return
	}
	r.doc.SetPath(field, value)
}

// Unset removes a field or dotted path
func (r Row) Unset(field string) {
	if r.doc.Has(field) {
		r.doc.Delete(field)
		return
	}
	r.doc.DeletePath(field)
}

// Document returns the wrapped record
func (r Row) Document() *Document {
	return r.doc
}

// ToMap returns the record as plain Go values
func (r Row) ToMap() map[string]interface{} {
	return r.doc.ToMap()
}
