package span

import (
	"fmt"

	"weft/backend/crdt/rle"
)

var _ rle.Item[*Span] = (*Span)(nil)

// Span is a run of content inserted by a single actor in one contiguous go.
// It records where the run was placed at insertion time through two causal
// back-references: the identifiers of the content units immediately to the
// left and to the right of the insertion point. A conflict resolution
// algorithm later uses those anchors to interleave concurrent insertions
// into the same total order on every replica.
//
// The span carries no content payload. Identity plus length is enough for
// ordering; the actual characters live elsewhere, addressed by the same IDs.
//
// A span covers the identifier range [ID.Counter, ID.Counter+Length) of its
// actor. Length must stay positive: a zero-length span is a bug, not a state.
type Span struct {
	ID          ID
	Length      int
	Status      Status
	OriginLeft  MaybeID
	OriginRight MaybeID
}

// New creates a span for a fresh insertion run.
func New(id ID, length int, left, right MaybeID) *Span {
	if length <= 0 {
		panic(fmt.Sprintf("BUG: creating span %s with length %d", id, length))
	}

	return &Span{
		ID:          id,
		Length:      length,
		OriginLeft:  left,
		OriginRight: right,
	}
}

// LastID returns the identifier of the final content unit covered by the span, inclusive.
func (s *Span) LastID() ID {
	return s.ID.Advance(Counter(s.Length) - 1)
}

// IDSpan returns the half-open identifier range covered by the span.
func (s *Span) IDSpan() IDSpan {
	return NewIDSpan(s.ID.Actor, s.ID.Counter, s.ID.Counter+Counter(s.Length))
}

// CanBeOrigin reports whether new insertions may anchor against this span.
// Only visible content can be referenced as a causal origin.
func (s *Span) CanBeOrigin() bool {
	if s.Length <= 0 {
		panic(fmt.Sprintf("BUG: span %s has length %d", s.ID, s.Length))
	}
	return s.Status.IsActive()
}

// ContainsID reports whether the given ID falls inside the span's run.
func (s *Span) ContainsID(id ID) bool {
	return s.ID.Actor == id.Actor &&
		s.ID.Counter <= id.Counter &&
		id.Counter <= s.LastID().Counter
}

// Overlaps reports whether the span's identifier range intersects the given interval.
func (s *Span) Overlaps(r IDSpan) bool {
	if s.ID.Actor != r.Actor {
		return false
	}

	return s.ID.Counter < r.To && s.ID.Counter+Counter(s.Length) > r.From
}

// Len returns the span's contribution to the visible document length:
// zero unless the content is active.
func (s *Span) Len() int {
	if !s.Status.IsActive() {
		return 0
	}
	return s.Length
}

// ContentLen returns the physical length of the run regardless of visibility.
func (s *Span) ContentLen() int {
	return s.Length
}

// ContentType reports the content kind for heterogeneous run storage.
func (s *Span) ContentType() rle.ContentType {
	return rle.ContentText
}

// CanMerge reports whether other is the seamless continuation of this span:
// same actor, same status, counter-contiguous, inserted with the same right
// anchor, and anchored on the left exactly at this span's last unit. Under
// those conditions the two runs are indistinguishable from a single
// contiguous insertion, so coalescing them loses nothing.
func (s *Span) CanMerge(other *Span) bool {
	return other.ID.Actor == s.ID.Actor &&
		s.Status == other.Status &&
		s.ID.Counter+Counter(s.Length) == other.ID.Counter &&
		s.OriginRight == other.OriginRight &&
		SomeID(s.LastID()) == other.OriginLeft
}

// Merge appends other into this span. The leading edge (ID, OriginLeft) is
// unaffected by appending; the right anchor is taken from the later run.
func (s *Span) Merge(other *Span) {
	s.OriginRight = other.OriginRight
	s.Length += other.Length
}

// Slice returns an independent span covering the physical sub-range [from, to),
// with origin anchors rewritten as if the sub-range had always been its own
// span: whatever the cut removed on a side becomes that side's origin.
// Adjacent fragments stay causally chained (each one's left anchor is its
// sibling's last unit), and merging them back reconstructs the original run
// exactly.
//
// Slicing past the end of the run is a caller bug.
func (s *Span) Slice(from, to int) *Span {
	if from < 0 || to < from || to > s.Length {
		panic(fmt.Sprintf("BUG: slicing span %s of length %d with range [%d, %d)", s.ID, s.Length, from, to))
	}

	if from == 0 && to == s.Length {
		out := *s
		return &out
	}

	if from == 0 {
		return &Span{
			ID:          s.ID,
			Length:      to,
			Status:      s.Status,
			OriginLeft:  s.OriginLeft,
			OriginRight: SomeID(s.ID.Advance(Counter(to))),
		}
	}

	if to == s.Length {
		return &Span{
			ID:          s.ID.Advance(Counter(from)),
			Length:      to - from,
			Status:      s.Status,
			OriginLeft:  SomeID(s.ID.Advance(Counter(from) - 1)),
			OriginRight: s.OriginRight,
		}
	}

	return &Span{
		ID:          s.ID.Advance(Counter(from)),
		Length:      to - from,
		Status:      s.Status,
		OriginLeft:  SomeID(s.ID.Advance(Counter(from) - 1)),
		OriginRight: SomeID(s.ID.Advance(Counter(to))),
	}
}

func (s *Span) String() string {
	return fmt.Sprintf("span(%s+%d left=%s right=%s active=%v)",
		s.ID, s.Length, s.OriginLeft, s.OriginRight, s.Status.IsActive())
}
