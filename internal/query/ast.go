// Package query implements the condition compiler and value ordering used by
// bunjson query pipelines.
//
// A where clause (`score >= 80`, `email match /^b@/`, `score between [80, 95]`)
// is compiled into a Condition once, when the stage is added, and then
// evaluated against each record's field value during the scan.
package query

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/kartikbazzad/bunbase/bunjson/internal/util"
)

// Operator represents a comparison operator (e.g., =, >=, in).
type Operator string

const (
	OpEq      Operator = "="
	OpGt      Operator = ">"
	OpGte     Operator = ">="
	OpLt      Operator = "<"
	OpLte     Operator = "<="
	OpIn      Operator = "in"
	OpNotIn   Operator = "not in"
	OpMatch   Operator = "match"
	OpBetween Operator = "between"
)

// Operators lists the supported operators
var Operators = []Operator{OpEq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn, OpMatch, OpBetween}

// Condition is a compiled comparison against a single field
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}

	list    []interface{}
	pattern *regexp.Regexp
}

// Matcher interface
type Matcher interface {
	Matches(value interface{}) bool
}

// NewCondition validates the operator and operand and compiles a condition.
// Operand errors are reported here, before any record is scanned.
func NewCondition(field string, op string, value interface{}) (*Condition, error) {
	c := &Condition{Field: field, Operator: Operator(op), Value: value}

	switch c.Operator {
	case OpEq, OpGt, OpGte, OpLt, OpLte:
	case OpIn, OpNotIn:
		c.list = toList(value)
	case OpMatch:
		pattern, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: match needs a string pattern, got %T", util.ErrInvalidArgument, value)
		}
		re, err := CompilePattern(pattern)
		if err != nil {
			return nil, err
		}
		c.pattern = re
	case OpBetween:
		bounds, ok := asSlice(value)
		if !ok || len(bounds) != 2 {
			return nil, fmt.Errorf("%w: between needs exactly 2 items in array", util.ErrInvalidArgument)
		}
		c.list = bounds
	default:
		return nil, fmt.Errorf("%w: operator %q is not available", util.ErrInvalidOperator, op)
	}

	return c, nil
}

// Matches checks a field value against the condition.
// Absent fields are passed in as nil.
func (c *Condition) Matches(actual interface{}) bool {
	switch c.Operator {
	case OpEq:
		return Equal(actual, c.Value)
	case OpGt:
		return CompareValues(actual, c.Value) > 0
	case OpGte:
		return CompareValues(actual, c.Value) >= 0
	case OpLt:
		return CompareValues(actual, c.Value) < 0
	case OpLte:
		return CompareValues(actual, c.Value) <= 0
	case OpIn:
		return contains(c.list, actual)
	case OpNotIn:
		return !contains(c.list, actual)
	case OpMatch:
		return c.pattern.MatchString(ToString(actual))
	case OpBetween:
		return CompareValues(actual, c.list[0]) >= 0 && CompareValues(actual, c.list[1]) <= 0
	}
	return false
}

// CompilePattern compiles a match operand. Both delimited patterns with
// trailing flags ("/^b@/i") and bare Go regular expressions are accepted.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	expr := pattern
	if len(pattern) >= 2 && strings.ContainsRune("/#~!@%|", rune(pattern[0])) {
		end := strings.LastIndexByte(pattern, pattern[0])
		if end > 0 {
			flags, err := translateFlags(pattern[end+1:])
			if err != nil {
				return nil, err
			}
			expr = flags + pattern[1:end]
		}
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pattern %q: %v", util.ErrInvalidArgument, pattern, err)
	}
	return re, nil
}

func translateFlags(flags string) (string, error) {
	var out strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's', 'U':
			out.WriteRune(f)
		case 'u', 'D':
			// Go patterns are always UTF-8 and $ already anchors at the end
		default:
			return "", fmt.Errorf("%w: unsupported pattern flag %q", util.ErrInvalidArgument, f)
		}
	}
	if out.Len() == 0 {
		return "", nil
	}
	return "(?" + out.String() + ")", nil
}

// toList treats a slice operand as a list and anything else as a one item list
func toList(v interface{}) []interface{} {
	if list, ok := asSlice(v); ok {
		return list
	}
	return []interface{}{v}
}

func asSlice(v interface{}) ([]interface{}, bool) {
	if list, ok := v.([]interface{}); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func contains(list []interface{}, v interface{}) bool {
	for _, item := range list {
		if Equal(item, v) {
			return true
		}
	}
	return false
}
