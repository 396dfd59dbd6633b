// Package rle provides generic run-length-encoded storage primitives.
// Any content kind that can report its length, coalesce with an adjacent run,
// and slice itself at arbitrary boundaries can be stored in these containers
// interchangeably. Sequence CRDT spans are the primary implementation.
package rle

import "fmt"

// ContentType tags the kind of content a run carries,
// so that a heterogeneous operation log can dispatch when downcasting.
type ContentType byte

const (
	// ContentUnknown is the zero tag. No valid run reports it.
	ContentUnknown ContentType = iota
	// ContentText tags text insertion runs.
	ContentText
)

func (t ContentType) String() string {
	switch t {
	case ContentText:
		return "text"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// Item is the capability contract a run must satisfy to be stored
// in a run-length container.
//
// The two length notions are distinct on purpose. Len is the contribution
// to the visible document: zero when the run's content is deleted, undone,
// or not yet applied. ContentLen is the physical extent of the run, which is
// what slicing and identifier math operate on regardless of visibility.
// Cumulative position indexes must use Len; structural bookkeeping must use
// ContentLen. Mixing them up silently corrupts position queries.
type Item[T any] interface {
	// Len returns the run's contribution to the visible document length.
	Len() int
	// ContentLen returns the physical length of the run.
	ContentLen() int
	// ContentType reports what kind of content the run carries.
	ContentType() ContentType
	// CanMerge reports whether other can be appended into this run
	// without losing any information.
	CanMerge(other T) bool
	// Merge appends other into this run. Only valid after CanMerge returned true.
	Merge(other T)
	// Slice returns an independent run covering the physical sub-range [from, to).
	Slice(from, to int) T
}
