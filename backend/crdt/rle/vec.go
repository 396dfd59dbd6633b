package rle

import (
	"fmt"
	"iter"
)

// Vec is a run-length-compressed vector: appended runs are coalesced with the
// last stored run whenever the item contract allows it. Positions are counted
// in physical (content) units, so runs keep their place even when their
// content is not visible.
type Vec[T Item[T]] struct {
	runs       []T
	contentLen int
}

// NewVec creates an empty run-length vector.
func NewVec[T Item[T]]() *Vec[T] {
	return &Vec[T]{}
}

// Append adds a run to the end of the vector,
// merging it into the last run when possible.
func (v *Vec[T]) Append(item T) {
	v.contentLen += item.ContentLen()

	if n := len(v.runs); n > 0 && v.runs[n-1].CanMerge(item) {
		v.runs[n-1].Merge(item)
		return
	}

	v.runs = append(v.runs, item)
}

// RunCount returns the number of stored runs after coalescing.
func (v *Vec[T]) RunCount() int {
	return len(v.runs)
}

// ContentLen returns the total physical length of all runs.
func (v *Vec[T]) ContentLen() int {
	return v.contentLen
}

// VisibleLen returns the total visible length of all runs.
func (v *Vec[T]) VisibleLen() (sum int) {
	for _, r := range v.runs {
		sum += r.Len()
	}
	return sum
}

// Get returns the run at index idx.
func (v *Vec[T]) Get(idx int) T {
	return v.runs[idx]
}

// Runs returns an in-order iterator over the stored runs.
func (v *Vec[T]) Runs() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, r := range v.runs {
			if !yield(r) {
				return
			}
		}
	}
}

// SliceRange returns independent fragments covering the physical position
// range [from, to) across run boundaries. Runs fully inside the range are
// returned whole (as full-range slices); boundary runs are cut.
func (v *Vec[T]) SliceRange(from, to int) []T {
	if from < 0 || to < from || to > v.contentLen {
		panic(fmt.Sprintf("BUG: slice range [%d, %d) out of bounds for content length %d", from, to, v.contentLen))
	}

	var out []T
	pos := 0
	for _, r := range v.runs {
		rlen := r.ContentLen()
		start, end := pos, pos+rlen
		pos = end

		if end <= from {
			continue
		}
		if start >= to {
			break
		}

		cutFrom := max(from-start, 0)
		cutTo := min(to-start, rlen)
		out = append(out, r.Slice(cutFrom, cutTo))
	}

	return out
}
