package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CompareValues returns -1 if a < b, 0 if a == b, 1 if a > b.
//
// Numbers compare numerically whatever their Go type, strings lexically and
// booleans false < true. Null sorts before every other value. Anything else
// (including mixed types) falls back to comparing the formatted values.
func CompareValues(a, b interface{}) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	f1, ok1 := ToFloat(a)
	f2, ok2 := ToFloat(b)
	if ok1 && ok2 {
		if f1 > f2 {
			return 1
		}
		if f1 < f2 {
			return -1
		}
		return 0
	}

	if s1, ok := a.(string); ok {
		if s2, ok := b.(string); ok {
			return strings.Compare(s1, s2)
		}
	}

	if b1, ok := a.(bool); ok {
		if b2, ok := b.(bool); ok {
			switch {
			case b1 == b2:
				return 0
			case !b1:
				return -1
			default:
				return 1
			}
		}
	}

	// Fallback string compare
	return strings.Compare(format(a), format(b))
}

// Equal reports whether two values are equal under CompareValues
func Equal(a, b interface{}) bool {
	return CompareValues(a, b) == 0
}

// ToFloat converts any numeric value to float64
func ToFloat(v interface{}) (float64, bool) {
	switch i := v.(type) {
	case float64:
		return i, true
	case float32:
		return float64(i), true
	case int:
		return float64(i), true
	case int8:
		return float64(i), true
	case int16:
		return float64(i), true
	case int32:
		return float64(i), true
	case int64:
		return float64(i), true
	case uint:
		return float64(i), true
	case uint8:
		return float64(i), true
	case uint16:
		return float64(i), true
	case uint32:
		return float64(i), true
	case uint64:
		return float64(i), true
	case json.Number:
		f, err := i.Float64()
		return f, err == nil
	}
	return 0, false
}

// ToNumber is ToFloat plus numeric strings and booleans, used by aggregates
func ToNumber(v interface{}) (float64, bool) {
	if f, ok := ToFloat(v); ok {
		return f, true
	}
	switch i := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(i), 64)
		return f, err == nil
	case bool:
		if i {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ToString renders a value the way it is matched against patterns
func ToString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		if s {
			return "1"
		}
		return ""
	}
	return format(v)
}

// format renders composite values as JSON so documents compare by content
func format(v interface{}) string {
	switch v.(type) {
	case json.Marshaler, []interface{}, map[string]interface{}:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err == nil {
			return strings.TrimSuffix(buf.String(), "\n")
		}
	}
	return fmt.Sprintf("%v", v)
}
