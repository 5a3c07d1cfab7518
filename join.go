package bunjson

import (
	"fmt"

	"github.com/kartikbazzad/bunbase/bunjson/internal/query"
)

// Queryable is anything that can start a fresh query, such as a Collection
type Queryable interface {
	Query() *Query
}

// WithOne attaches the first record of relation whose otherField matches
// this record's thisField, under the field as. relation is a *Query, a
// *Collection or any Queryable. An empty operator means "=" and an empty
// thisField means the primary key.
func (q *Query) WithOne(relation interface{}, as, otherField, operator, thisField string) *Query {
	return q.with(relation, as, otherField, operator, thisField, false)
}

// WithMany is WithOne attaching every matching record as an array
func (q *Query) WithMany(relation interface{}, as, otherField, operator, thisField string) *Query {
	return q.with(relation, as, otherField, operator, thisField, true)
}

func (q *Query) with(relation interface{}, as, otherField, operator, thisField string, many bool) *Query {
	if q.err != nil {
		return q
	}

	var base *Query
	switch r := relation.(type) {
	case *Query:
		base = r
	case Queryable:
		base = r.Query()
	}
	if base == nil {
		return q.fail(fmt.Errorf("%w: relation must be a Query or Collection, got %T", ErrInvalidArgument, relation))
	}
	if as == "" || otherField == "" {
		return q.fail(fmt.Errorf("%w: join needs an alias and a foreign field", ErrInvalidArgument))
	}
	if operator == "" {
		operator = string(query.OpEq)
	}
	if !knownOperator(operator) {
		return q.fail(fmt.Errorf("%w: operator %q is not available", ErrInvalidOperator, operator))
	}
	if thisField == "" {
		thisField, _ = q.keys()
	}

	// Load the relation once; every row joins against its own copy
	if _, err := base.Data(); err != nil {
		return q.fail(err)
	}
	snapshot := base.Fork()

	var joinErr error
	q.Map(func(row Row) interface{} {
		if joinErr != nil {
			return row
		}
		sub := snapshot.Fork().Where(otherField, operator, row.Value(thisField))
		if many {
			docs, err := sub.Get()
			if err != nil {
				joinErr = err
				return row
			}
			row.Set(as, docs)
		} else {
			doc, err := sub.First()
			if err != nil {
				joinErr = err
				return row
			}
			row.Set(as, doc)
		}
		return row
	})
	if joinErr != nil {
		return q.fail(joinErr)
	}
	return q
}

func knownOperator(op string) bool {
	for _, known := range query.Operators {
		if string(known) == op {
			return true
		}
	}
	return false
}
