package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// DocumentSet is an ordered mapping of document ID to document.
// A nil document is a tombstone: the entry keeps its position but holds no
// record.
type DocumentSet struct {
	keys []string
	docs map[string]*Document
}

// NewDocumentSet creates an empty set
func NewDocumentSet() *DocumentSet {
	return &DocumentSet{docs: make(map[string]*Document)}
}

// Len returns the number of entries, tombstones included
func (s *DocumentSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Keys returns the IDs in order
func (s *DocumentSet) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Get returns the document stored under id
func (s *DocumentSet) Get(id string) (*Document, bool) {
	if s == nil {
		return nil, false
	}
	doc, ok := s.docs[id]
	return doc, ok
}

// Has reports whether id is present
func (s *DocumentSet) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Set stores doc under id. New IDs are appended.
func (s *DocumentSet) Set(id string, doc *Document) {
	if s.docs == nil {
		s.docs = make(map[string]*Document)
	}
	if _, exists := s.docs[id]; !exists {
		s.keys = append(s.keys, id)
	}
	s.docs[id] = doc
}

// Delete removes id from the set
func (s *DocumentSet) Delete(id string) {
	if _, exists := s.docs[id]; !exists {
		return
	}
	for i, k := range s.keys {
		if k == id {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	delete(s.docs, id)
}

// Rename moves the entry stored under oldID to newID, keeping its position.
// An existing entry under newID is dropped.
func (s *DocumentSet) Rename(oldID, newID string) bool {
	doc, ok := s.docs[oldID]
	if !ok {
		return false
	}
	s.Relocate([]Relocation{{From: oldID, To: newID, Doc: doc}})
	return true
}

// Relocation stores Doc under To in place of the entry under From
type Relocation struct {
	From string
	To   string
	Doc  *Document
}

// Relocate applies all moves at once. Every From entry is taken out before
// anything is written, so two entries can swap IDs. Each Doc keeps its From
// position; other entries holding one of the To IDs are dropped. Moves whose
// From is not stored are ignored, and a repeated From keeps the first move.
// Returns the number of moves applied.
func (s *DocumentSet) Relocate(moves []Relocation) int {
	byFrom := make(map[string]Relocation, len(moves))
	taken := make(map[string]bool, len(moves))
	for _, m := range moves {
		if _, ok := s.docs[m.From]; !ok {
			continue
		}
		if _, dup := byFrom[m.From]; dup {
			continue
		}
		byFrom[m.From] = m
		taken[m.To] = true
	}
	if len(byFrom) == 0 {
		return 0
	}

	keys := make([]string, 0, len(s.keys))
	docs := make(map[string]*Document, len(s.docs))
	for _, k := range s.keys {
		if m, ok := byFrom[k]; ok {
			if _, exists := docs[m.To]; !exists {
				keys = append(keys, m.To)
			}
			docs[m.To] = m.Doc
			continue
		}
		if taken[k] {
			continue
		}
		keys = append(keys, k)
		docs[k] = s.docs[k]
	}
	s.keys, s.docs = keys, docs
	return len(byFrom)
}

// Each calls fn for every entry in order
func (s *DocumentSet) Each(fn func(id string, doc *Document)) {
	if s == nil {
		return
	}
	for _, k := range s.keys {
		fn(k, s.docs[k])
	}
}

// Values returns the documents in order, tombstones included
func (s *DocumentSet) Values() []*Document {
	if s == nil {
		return nil
	}
	out := make([]*Document, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.docs[k]
	}
	return out
}

// Clone creates a deep copy of the set
func (s *DocumentSet) Clone() *DocumentSet {
	clone := NewDocumentSet()
	s.Each(func(id string, doc *Document) {
		clone.Set(id, doc.Clone())
	})
	return clone
}

// Slice returns up to limit entries starting at offset.
// A negative limit means "until the end". The result is keyed by position
// ("0", "1", ...), not by the original IDs.
func (s *DocumentSet) Slice(offset, limit int) *DocumentSet {
	out := NewDocumentSet()
	n := s.Len()
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit >= 0 && offset+limit < n {
		end = offset + limit
	}
	for i, k := range s.keys[offset:end] {
		out.Set(strconv.Itoa(i), s.docs[k])
	}
	return out
}

// MarshalJSON encodes the set as a JSON object of id -> document
func (s *DocumentSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := encodeValue(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := s.docs[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("document %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of id -> document.
// An empty array and null decode to an empty set.
func (s *DocumentSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	set := NewDocumentSet()
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch tok {
	case nil:
		*s = *set
		return nil
	case json.Delim('['):
		if dec.More() {
			return fmt.Errorf("top level must be an object of documents")
		}
		*s = *set
		return nil
	case json.Delim('{'):
	default:
		return fmt.Errorf("top level must be an object of documents")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected document id, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return err
		}
		doc, ok := val.(*Document)
		if !ok {
			return fmt.Errorf("document %q must be a JSON object", id)
		}
		set.Set(id, doc)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = *set
	return nil
}
