package bunjson

import (
	"fmt"

	"github.com/kartikbazzad/bunbase/bunjson/internal/metrics"
	"github.com/kartikbazzad/bunbase/bunjson/internal/query"
	"github.com/kartikbazzad/bunbase/bunjson/storage"
)

// Operation is a terminal operation dispatched to Collection.Execute
type Operation string

const (
	OpGet    Operation = "get"
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpSave   Operation = "save"
)

// Result is the outcome of Execute
type Result struct {
	// Documents holds the records read (get) or stored (insert)
	Documents []*Document

	// Affected is the number of stored records written or removed
	Affected int
}

// target is a working set record and the stored ID it resolves to
type target struct {
	id  string
	doc *Document
}

// Execute runs a terminal operation.
//
// get returns the query's records. insert stores the payload (*Document or
// []*Document) and ignores q. update, delete and save resolve every record
// of q to a stored ID (the old-id field when present, otherwise the working
// set key) and rewrite the backing file; IDs no longer stored are skipped.
func (c *Collection) Execute(q *Query, op Operation, payload interface{}) (res *Result, err error) {
	defer func() {
		affected := 0
		if res != nil {
			affected = res.Affected
		}
		metrics.ObserveOperation(string(op), affected, err)
	}()

	if op == OpInsert {
		return c.executeInsert(payload)
	}
	if q == nil {
		return nil, fmt.Errorf("%w: %s needs a query", ErrInvalidArgument, op)
	}

	switch op {
	case OpGet:
		return c.executeGet(q)
	case OpUpdate:
		patch, ok := payload.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: update payload must be a map, got %T", ErrInvalidArgument, payload)
		}
		return c.executeUpdate(q, patch)
	case OpDelete:
		return c.executeDelete(q)
	case OpSave:
		return c.executeSave(q)
	default:
		return nil, fmt.Errorf("%w: unknown operation %q", ErrInvalidArgument, op)
	}
}

func (c *Collection) executeGet(q *Query) (*Result, error) {
	data, err := q.Data()
	q.hasExecuted = true
	if err != nil {
		return nil, err
	}

	docs := make([]*Document, 0, data.Len())
	for _, doc := range data.Values() {
		if doc != nil {
			docs = append(docs, doc)
		}
	}
	return &Result{Documents: docs}, nil
}

func (c *Collection) executeInsert(payload interface{}) (*Result, error) {
	var docs []*Document
	switch p := payload.(type) {
	case *Document:
		docs = []*Document{p}
	case []*Document:
		docs = p
	default:
		return nil, fmt.Errorf("%w: insert payload must be a document or a list of documents, got %T", ErrInvalidArgument, payload)
	}
	if len(docs) == 0 {
		return &Result{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.loadForWrite()
	if err != nil {
		return nil, err
	}

	pk := c.opts.PrimaryKey
	prepared := make([]target, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for i, d := range docs {
		if d == nil {
			return nil, fmt.Errorf("%w: document %d is nil", ErrInvalidArgument, i)
		}
		doc := d.Clone()
		id, ok := doc.ID(pk)
		if !ok {
			id = c.opts.IDGenerator()
			doc.SetFirst(pk, id)
		}
		if seen[id] || data.Has(id) {
			return nil, fmt.Errorf("%w: duplicate %s %q", ErrInvalidArgument, pk, id)
		}
		if err := c.Validate(doc); err != nil {
			return nil, fmt.Errorf("document %q: %w", id, err)
		}
		seen[id] = true
		prepared = append(prepared, target{id: id, doc: doc})
	}

	res := &Result{Documents: make([]*Document, 0, len(prepared))}
	for _, t := range prepared {
		data.Set(t.id, t.doc)
		res.Documents = append(res.Documents, t.doc.Clone())
	}
	if err := c.persist(data); err != nil {
		return nil, err
	}
	res.Affected = len(prepared)

	c.logger.Debug("Inserted documents", "op", OpInsert, "count", res.Affected)
	return res, nil
}

// targets resolves the query's records to stored IDs, first match wins
func (c *Collection) targets(q *Query) ([]target, error) {
	data, err := q.Data()
	q.hasExecuted = true
	if err != nil {
		return nil, err
	}

	var out []target
	seen := make(map[string]bool)
	data.Each(func(key string, doc *Document) {
		if doc == nil {
			return
		}
		id := key
		if old, ok := doc.Get(c.opts.OldIDKey); ok && old != nil {
			id = query.ToString(old)
		}
		if seen[id] {
			return
		}
		seen[id] = true
		out = append(out, target{id: id, doc: doc})
	})
	return out, nil
}

// mutate runs fn over the stored set for every target and persists when
// anything changed
func (c *Collection) mutate(q *Query, op Operation, fn func(data *storage.DocumentSet, t target) (bool, error)) (*Result, error) {
	targets, err := c.targets(q)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.loadForWrite()
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, t := range targets {
		if !data.Has(t.id) {
			continue
		}
		changed, err := fn(data, t)
		if err != nil {
			// Nothing is persisted; data is a private copy
			return nil, err
		}
		if changed {
			res.Affected++
		}
	}

	if res.Affected > 0 {
		if err := c.persist(data); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("Executed operation", "op", op, "count", res.Affected)
	return res, nil
}

func (c *Collection) executeUpdate(q *Query, patch map[string]interface{}) (*Result, error) {
	pk := c.opts.PrimaryKey
	return c.mutate(q, OpUpdate, func(data *storage.DocumentSet, t target) (bool, error) {
		stored, _ := data.Get(t.id)
		if stored == nil {
			return false, nil
		}
		doc := stored.Clone()
		id, hadID := doc.Get(pk)
		doc.ApplyPatch(patch)
		if hadID {
			// The primary key is not patchable
			if doc.Has(pk) {
				doc.Set(pk, id)
			} else {
				doc.SetFirst(pk, id)
			}
		}
		if err := c.Validate(doc); err != nil {
			return false, fmt.Errorf("document %q: %w", t.id, err)
		}
		data.Set(t.id, doc)
		return true, nil
	})
}

func (c *Collection) executeDelete(q *Query) (*Result, error) {
	return c.mutate(q, OpDelete, func(data *storage.DocumentSet, t target) (bool, error) {
		data.Delete(t.id)
		return true, nil
	})
}

// executeSave writes every target back in one pass so that remapped records
// can trade IDs without overwriting each other
func (c *Collection) executeSave(q *Query) (*Result, error) {
	targets, err := c.targets(q)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.loadForWrite()
	if err != nil {
		return nil, err
	}

	pk, oldKey := c.opts.PrimaryKey, c.opts.OldIDKey
	moves := make([]storage.Relocation, 0, len(targets))
	for _, t := range targets {
		if !data.Has(t.id) {
			continue
		}
		doc := t.doc.Clone()
		doc.Delete(oldKey)

		id, ok := doc.ID(pk)
		if !ok {
			id = t.id
			doc.SetFirst(pk, id)
		}
		if err := c.Validate(doc); err != nil {
			return nil, fmt.Errorf("document %q: %w", t.id, err)
		}
		moves = append(moves, storage.Relocation{From: t.id, To: id, Doc: doc})
	}

	res := &Result{Affected: data.Relocate(moves)}
	if res.Affected > 0 {
		if err := c.persist(data); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("Executed operation", "op", OpSave, "count", res.Affected)
	return res, nil
}
