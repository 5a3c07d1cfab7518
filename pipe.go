package bunjson

import "sort"

// Pipe is a pluggable pipeline stage, run with Query.Through
type Pipe interface {
	Transform(rows []Row) []Row
}

// PipeFunc adapts a function to the Pipe interface
type PipeFunc func(rows []Row) []Row

// Transform calls f
func (f PipeFunc) Transform(rows []Row) []Row {
	return f(rows)
}

// SorterPipe orders rows with a comparator
type SorterPipe struct {
	Comparator Comparator
}

// NewSorterPipe creates a sorting stage
func NewSorterPipe(cmp Comparator) *SorterPipe {
	return &SorterPipe{Comparator: cmp}
}

// Transform sorts rows in place and returns them
func (p *SorterPipe) Transform(rows []Row) []Row {
	sort.SliceStable(rows, func(i, j int) bool {
		return p.Comparator(rows[i], rows[j]) < 0
	})
	return rows
}
