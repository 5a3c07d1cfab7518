package bunjson

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kartikbazzad/bunbase/bunjson/internal/query"
	"github.com/kartikbazzad/bunbase/bunjson/rules"
	"github.com/kartikbazzad/bunbase/bunjson/storage"
)

// Predicate decides whether a record stays in the working set
type Predicate func(row Row) bool

// Mapper turns a record into a new one. Returning a *Document, Document,
// map[string]interface{} or Row produces the new record; any other value
// leaves a tombstone in its place.
type Mapper func(row Row) interface{}

// Comparator orders two records: negative when a sorts before b
type Comparator func(a, b Row) int

// Query is a pipeline of stages over a working copy of a collection.
//
// The working set is loaded on first use and rewritten in place by every
// stage, in call order. The first usage error (unknown operator, bad
// argument, load failure) is kept: later stages do nothing and every
// terminal returns it.
type Query struct {
	collection  *Collection
	data        *storage.DocumentSet
	err         error
	hasExecuted bool
}

// NewQuery creates a query over a collection
func NewQuery(c *Collection) *Query {
	return &Query{collection: c}
}

// Collection returns the collection the query runs against
func (q *Query) Collection() *Collection {
	return q.collection
}

// SetCollection points the query at another collection
func (q *Query) SetCollection(c *Collection) {
	q.collection = c
}

// Err returns the first error recorded by a stage
func (q *Query) Err() error {
	return q.err
}

// HasExecuted reports whether a terminal operation ran
func (q *Query) HasExecuted() bool {
	return q.hasExecuted
}

// Data returns the working set, loading it from the collection on first use
func (q *Query) Data() (*DocumentSet, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.data == nil {
		if q.collection == nil {
			return nil, q.setErr(fmt.Errorf("%w: query has no collection", ErrInvalidArgument))
		}
		data, err := q.collection.LoadData()
		if err != nil {
			return nil, q.setErr(err)
		}
		q.data = data
	}
	return q.data, nil
}

// Fork returns an independent copy of the query and its working set
func (q *Query) Fork() *Query {
	f := &Query{collection: q.collection, err: q.err}
	if q.data != nil {
		f.data = q.data.Clone()
	}
	return f
}

func (q *Query) setErr(err error) error {
	if q.err == nil {
		q.err = err
	}
	return q.err
}

func (q *Query) fail(err error) *Query {
	q.setErr(err)
	return q
}

// stage replaces the working set with the result of fn
func (q *Query) stage(fn func(data *DocumentSet) *DocumentSet) *Query {
	data, err := q.Data()
	if err != nil {
		return q
	}
	q.data = fn(data)
	return q
}

// Filter keeps the records the predicate accepts. Tombstones are kept.
func (q *Query) Filter(pred Predicate) *Query {
	if q.err != nil {
		return q
	}
	if pred == nil {
		return q.fail(fmt.Errorf("%w: nil predicate", ErrInvalidArgument))
	}
	return q.stage(func(data *DocumentSet) *DocumentSet {
		out := storage.NewDocumentSet()
		data.Each(func(key string, doc *Document) {
			if doc == nil || pred(newKeyedRow(key, doc)) {
				out.Set(key, doc)
			}
		})
		return out
	})
}

// Where filters on one field with an operator: =, >, >=, <, <=, in,
// not in, match, between. Absent fields compare as null.
func (q *Query) Where(field, operator string, value interface{}) *Query {
	if q.err != nil {
		return q
	}
	cond, err := query.NewCondition(field, operator, value)
	if err != nil {
		return q.fail(err)
	}
	return q.Filter(func(row Row) bool {
		return cond.Matches(row.Value(field))
	})
}

// WhereEq is Where(field, "=", value)
func (q *Query) WhereEq(field string, value interface{}) *Query {
	return q.Where(field, string(query.OpEq), value)
}

// WhereExpr filters with a CEL expression over the variable row, e.g.
// `row.score >= 80`. Records the expression fails on (missing fields)
// are dropped.
func (q *Query) WhereExpr(expression string) *Query {
	if q.err != nil {
		return q
	}
	engine, err := rules.Default()
	if err != nil {
		return q.fail(err)
	}
	rule, err := engine.Compile(expression)
	if err != nil {
		return q.fail(fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}
	return q.Filter(func(row Row) bool {
		ok, err := rule.Eval(row.ToMap())
		return err == nil && ok
	})
}

// Map replaces every record with the mapper's result.
// When the input record had a primary key and the new record carries a
// different non-null one, the input key is kept under the old-id field so
// writes can still find it. A record that gains a primary key gets no trail;
// writes then resolve it by its working set key.
func (q *Query) Map(mapper Mapper) *Query {
	if q.err != nil {
		return q
	}
	if mapper == nil {
		return q.fail(fmt.Errorf("%w: nil mapper", ErrInvalidArgument))
	}
	pk, oldKey := q.keys()
	return q.stage(func(data *DocumentSet) *DocumentSet {
		out := storage.NewDocumentSet()
		data.Each(func(key string, doc *Document) {
			if doc == nil {
				out.Set(key, nil)
				return
			}
			before, hadID := doc.Get(pk)
			result := toDocument(mapper(newKeyedRow(key, doc)))
			if result != nil && hadID {
				after, ok := result.Get(pk)
				if ok && after != nil && !query.Equal(before, after) && !result.Has(oldKey) {
					result.Set(oldKey, before)
				}
			}
			out.Set(key, result)
		})
		return out
	})
}

func toDocument(v interface{}) *Document {
	switch r := v.(type) {
	case *Document:
		return r
	case Document:
		return &r
	case map[string]interface{}:
		return storage.FromMap(r)
	case Row:
		return r.doc
	case *Row:
		if r == nil {
			return nil
		}
		return r.doc
	}
	return nil
}

func (q *Query) keys() (string, string) {
	if q.collection == nil {
		return "_id", "_old"
	}
	return q.collection.PrimaryKey(), q.collection.OldIDKey()
}

// Sort orders the records with a comparator. Tombstones move to the end.
func (q *Query) Sort(cmp Comparator) *Query {
	if q.err != nil {
		return q
	}
	if cmp == nil {
		return q.fail(fmt.Errorf("%w: nil comparator", ErrInvalidArgument))
	}
	return q.Through(NewSorterPipe(cmp))
}

// SortBy orders the records by a field, "asc" or "desc"
func (q *Query) SortBy(field, direction string) *Query {
	if q.err != nil {
		return q
	}
	dir, err := query.ParseDirection(direction)
	if err != nil {
		return q.fail(err)
	}
	return q.Sort(func(a, b Row) int {
		return query.CompareDirected(a.Value(field), b.Value(field), dir)
	})
}

type column struct {
	source string
	alias  string
}

// Select keeps only the given columns. A column is "field" or
// "field:alias"; the source field may be a dotted path ("other.email:email2").
// An unaliased dotted column is stored under the flat key "other.email".
func (q *Query) Select(columns ...string) *Query {
	if q.err != nil || len(columns) == 0 {
		return q
	}

	resolved := make([]column, 0, len(columns))
	aliases := make(map[string]bool, len(columns))
	for _, c := range columns {
		source, alias, found := strings.Cut(c, ":")
		if !found {
			alias = source
		}
		if source == "" || alias == "" {
			return q.fail(fmt.Errorf("%w: bad column %q", ErrInvalidArgument, c))
		}
		resolved = append(resolved, column{source: source, alias: alias})
		aliases[alias] = true
	}

	return q.stage(func(data *DocumentSet) *DocumentSet {
		data.Each(func(key string, doc *Document) {
			if doc == nil {
				return
			}
			row := newKeyedRow(key, doc)
			for _, c := range resolved {
				if !doc.Has(c.alias) {
					doc.Set(c.alias, row.Value(c.source))
				}
			}
			for _, field := range doc.Keys() {
				if !aliases[field] {
					doc.Delete(field)
				}
			}
		})
		return data
	})
}

// Skip drops the first offset records.
// The remaining records are keyed by position, not by their IDs.
func (q *Query) Skip(offset int) *Query {
	if q.err != nil {
		return q
	}
	if offset < 0 {
		return q.fail(fmt.Errorf("%w: negative offset %d", ErrInvalidArgument, offset))
	}
	return q.stage(func(data *DocumentSet) *DocumentSet {
		return data.Slice(offset, -1)
	})
}

// Take keeps up to limit records starting at an optional offset.
// The result is keyed by position, not by the record IDs.
func (q *Query) Take(limit int, offset ...int) *Query {
	if q.err != nil {
		return q
	}
	off := 0
	if len(offset) > 0 {
		off = offset[0]
	}
	if limit < 0 || off < 0 {
		return q.fail(fmt.Errorf("%w: negative limit or offset", ErrInvalidArgument))
	}
	return q.stage(func(data *DocumentSet) *DocumentSet {
		return data.Slice(off, limit)
	})
}

// Through runs pipes over the records in order.
// Rows keep their working set keys; rows a pipe creates are keyed by
// position. Tombstones are kept after the piped rows.
func (q *Query) Through(pipes ...Pipe) *Query {
	if q.err != nil {
		return q
	}
	return q.stage(func(data *DocumentSet) *DocumentSet {
		var rows []Row
		var tombstones []string
		data.Each(func(key string, doc *Document) {
			if doc == nil {
				tombstones = append(tombstones, key)
				return
			}
			rows = append(rows, newKeyedRow(key, doc))
		})

		for _, p := range pipes {
			if p != nil {
				rows = p.Transform(rows)
			}
		}

		out := storage.NewDocumentSet()
		for i, row := range rows {
			key := row.Key()
			if key == "" || out.Has(key) {
				key = strconv.Itoa(i)
			}
			out.Set(key, row.doc)
		}
		for _, key := range tombstones {
			if !out.Has(key) {
				out.Set(key, nil)
			}
		}
		return out
	})
}

// All returns every stored record, ignoring the pipeline
func (q *Query) All() ([]*Document, error) {
	if q.collection == nil {
		return nil, fmt.Errorf("%w: query has no collection", ErrInvalidArgument)
	}
	data, err := q.collection.LoadData()
	q.hasExecuted = true
	if err != nil {
		return nil, err
	}
	return data.Values(), nil
}

// Get returns the records in order, optionally projected to columns.
// Tombstones are not returned.
func (q *Query) Get(columns ...string) ([]*Document, error) {
	q.Select(columns...)
	if _, err := q.Data(); err != nil {
		return nil, err
	}
	res, err := q.collection.Execute(q, OpGet, nil)
	if err != nil {
		return nil, err
	}
	return res.Documents, nil
}

// First returns the first record, or nil when there is none
func (q *Query) First(columns ...string) (*Document, error) {
	docs, err := q.Take(1).Get(columns...)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Count returns the number of records
func (q *Query) Count() (int, error) {
	docs, err := q.Get()
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Sum adds up a field over the records.
// Numbers and numeric strings count; anything else is skipped.
func (q *Query) Sum(field string) (float64, error) {
	sum, _, err := q.aggregate(field)
	return sum, err
}

// Avg is Sum divided by the number of records, NaN when there are none
func (q *Query) Avg(field string) (float64, error) {
	sum, n, err := q.aggregate(field)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return math.NaN(), nil
	}
	return sum / float64(n), nil
}

func (q *Query) aggregate(field string) (float64, int, error) {
	docs, err := q.Get()
	if err != nil {
		return 0, 0, err
	}
	var sum float64
	for _, doc := range docs {
		if f, ok := query.ToNumber(NewRow(doc).Value(field)); ok {
			sum += f
		}
	}
	return sum, len(docs), nil
}

// Lists returns a field's values as an ordered record keyed by position or,
// when keyField is given, by the value of keyField. Later records win on
// duplicate keys.
func (q *Query) Lists(field string, keyField ...string) (*Document, error) {
	docs, err := q.Get()
	if err != nil {
		return nil, err
	}
	by := ""
	if len(keyField) > 0 {
		by = keyField[0]
	}

	out := storage.NewDocument()
	for i, doc := range docs {
		row := NewRow(doc)
		key := strconv.Itoa(i)
		if by != "" {
			key = query.ToString(row.Value(by))
		}
		out.Set(key, row.Value(field))
	}
	return out, nil
}

// Pluck is Lists
func (q *Query) Pluck(field string, keyField ...string) (*Document, error) {
	return q.Lists(field, keyField...)
}

// Min returns the smallest value of a field, nil when there are no records
func (q *Query) Min(field string) (interface{}, error) {
	return q.extreme(field, -1)
}

// Max returns the largest value of a field, nil when there are no records
func (q *Query) Max(field string) (interface{}, error) {
	return q.extreme(field, 1)
}

func (q *Query) extreme(field string, want int) (interface{}, error) {
	values, err := q.Lists(field)
	if err != nil {
		return nil, err
	}
	var best interface{}
	for i, key := range values.Keys() {
		v, _ := values.Get(key)
		if i == 0 || query.CompareValues(v, best) == want {
			best = v
		}
	}
	return best, nil
}

// Update merges patch into the stored records matched by the query.
// Keys may be dotted paths; "$unset" lists paths to remove.
func (q *Query) Update(patch map[string]interface{}) (int, error) {
	return q.write(OpUpdate, patch)
}

// Delete removes the stored records matched by the query
func (q *Query) Delete() (int, error) {
	return q.write(OpDelete, nil)
}

// Save writes the query's records back over the stored ones they came from
func (q *Query) Save() (int, error) {
	return q.write(OpSave, nil)
}

func (q *Query) write(op Operation, payload interface{}) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	if q.collection == nil {
		return 0, fmt.Errorf("%w: query has no collection", ErrInvalidArgument)
	}
	res, err := q.collection.Execute(q, op, payload)
	if err != nil {
		return 0, err
	}
	return res.Affected, nil
}
