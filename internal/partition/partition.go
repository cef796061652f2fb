// Package partition splits node indices into contiguous per-worker ranges.
//
// Every worker except the last receives floor(total/workers) indices; the last
// worker absorbs the remainder, so the ranges always cover [0, total) exactly
// once.
package partition

import "fmt"

// Range is a half-open interval [Start, End) of node indices.
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in the range.
func (r Range) Len() int { return r.End - r.Start }

// Contains reports whether idx falls inside the range.
func (r Range) Contains(idx int) bool { return idx >= r.Start && idx < r.End }

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// ComputeRange returns the range owned by worker index among workers workers.
// workers must be at least 1.
func ComputeRange(total, workers, index int) (start, end int) {
	if workers < 1 {
		panic(fmt.Sprintf("partition: worker count must be >= 1, got %d", workers))
	}
	share := total / workers
	start = index * share
	if index == workers-1 {
		return start, total
	}
	return start, start + share
}

// Layout is the full, immutable assignment of indices to workers.
type Layout struct {
	total   int
	workers int
	share   int
	ranges  []Range
}

// NewLayout computes every worker's range for total indices.
func NewLayout(total, workers int) *Layout {
	l := &Layout{
		total:   total,
		workers: workers,
		ranges:  make([]Range, workers),
	}
	for w := range workers {
		s, e := ComputeRange(total, workers, w)
		l.ranges[w] = Range{Start: s, End: e}
	}
	l.share = total / workers
	return l
}

// Workers returns the worker count.
func (l *Layout) Workers() int { return l.workers }

// Total returns the number of indices partitioned.
func (l *Layout) Total() int { return l.total }

// Range returns the range owned by worker w.
func (l *Layout) Range(w int) Range { return l.ranges[w] }

// Ranges returns a copy of all ranges in worker order.
func (l *Layout) Ranges() []Range { return append([]Range(nil), l.ranges...) }

// OwnerOfIndex returns the worker whose range contains idx, using the same
// arithmetic as ComputeRange: idx/share clamped to the last worker.
func (l *Layout) OwnerOfIndex(idx int) int {
	if l.share == 0 {
		return l.workers - 1
	}
	w := idx / l.share
	if w >= l.workers {
		w = l.workers - 1
	}
	return w
}
