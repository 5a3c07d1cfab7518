package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Operators are tried in this order so that ">=" wins over ">"
var whereOperators = []string{"not in", "between", "match", "in", ">=", "<=", "=", ">", "<"}

// parseWhere splits a clause such as `score >= 80`, `name = "C"` or
// `score between [80, 95]`. The value is read as JSON when it parses,
// otherwise it is taken as a bare string.
func parseWhere(clause string) (string, string, interface{}, error) {
	field, rest, ok := strings.Cut(strings.TrimSpace(clause), " ")
	if !ok || field == "" {
		return "", "", nil, fmt.Errorf("where clause %q must look like \"field op value\"", clause)
	}
	rest = strings.TrimSpace(rest)

	for _, op := range whereOperators {
		if !strings.HasPrefix(rest, op) {
			continue
		}
		raw := strings.TrimSpace(rest[len(op):])
		if raw == "" {
			return "", "", nil, fmt.Errorf("where clause %q has no value", clause)
		}
		return field, op, parseValue(raw), nil
	}
	return "", "", nil, fmt.Errorf("where clause %q has no known operator", clause)
}

func parseValue(raw string) interface{} {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return v
}
