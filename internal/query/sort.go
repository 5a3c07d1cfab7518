package query

import (
	"fmt"
	"strings"

	"github.com/kartikbazzad/bunbase/bunjson/internal/util"
)

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc" or "desc" in any case
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(s)); d {
	case Asc, Desc:
		return d, nil
	}
	return "", fmt.Errorf("%w: sort direction must be 'asc' or 'desc', got %q", util.ErrInvalidArgument, s)
}

// CompareDirected orders two field values for a sortBy stage.
// It never reports equality: ties resolve to 1, so equal values are not
// guaranteed to keep their relative order.
func CompareDirected(a, b interface{}, dir Direction) int {
	if dir == Desc {
		if CompareValues(a, b) > 0 {
			return -1
		}
		return 1
	}
	if CompareValues(a, b) < 0 {
		return -1
	}
	return 1
}
