// Package span implements the causal unit of a sequence CRDT:
// a run-length-compressed insertion record that carries left/right origin
// references and an activation status. These are the values a YATA-style
// conflict resolution algorithm operates on, and the values a run-length
// index stores, slices, and coalesces.
package span

import (
	"fmt"
)

// Actor is a stable replica identity.
// Each actor assigns counters to its own insertions monotonically and never reuses them.
type Actor uint64

// Counter is the per-actor sequence number of a single content unit.
type Counter int32

// ID identifies one content unit: a counter scoped to the actor that created it.
// IDs of the same actor are totally ordered by counter.
// IDs of different actors are causally incomparable; Compare below is a storage
// ordering only, it implies nothing about causality.
type ID struct {
	Actor   Actor
	Counter Counter
}

// NewID creates an ID from its parts.
func NewID(actor Actor, counter Counter) ID {
	return ID{Actor: actor, Counter: counter}
}

// Advance returns the ID shifted forward by n counters within the same actor.
func (id ID) Advance(n Counter) ID {
	return ID{Actor: id.Actor, Counter: id.Counter + n}
}

// Compare orders IDs by actor first, then by counter.
func (id ID) Compare(other ID) int {
	if id.Actor != other.Actor {
		if id.Actor < other.Actor {
			return -1
		}
		return +1
	}

	if id.Counter != other.Counter {
		if id.Counter < other.Counter {
			return -1
		}
		return +1
	}

	return 0
}

func (id ID) String() string {
	return fmt.Sprintf("%d@%d", id.Actor, id.Counter)
}

// MaybeID is an optional ID with plain value semantics.
// The zero value means "absent". Two MaybeIDs are equal iff == says so.
// It is deliberately not a pointer: an ID is comparable data,
// not a handle into another object.
type MaybeID struct {
	ID ID
	Ok bool
}

// SomeID wraps an ID into a present MaybeID.
func SomeID(id ID) MaybeID {
	return MaybeID{ID: id, Ok: true}
}

func (m MaybeID) String() string {
	if !m.Ok {
		return "none"
	}
	return m.ID.String()
}

// IDSpan is a contiguous half-open counter interval [From, To) owned by a single actor.
// Incoming events (delete, undo, redo) address content with these.
type IDSpan struct {
	Actor Actor
	From  Counter
	To    Counter
}

// NewIDSpan creates the interval [from, to) for the given actor.
func NewIDSpan(actor Actor, from, to Counter) IDSpan {
	if to < from {
		panic(fmt.Sprintf("BUG: inverted ID span [%d, %d)", from, to))
	}
	return IDSpan{Actor: actor, From: from, To: to}
}

// Len returns the number of counters covered by the interval.
func (s IDSpan) Len() int {
	return int(s.To - s.From)
}

// Contains reports whether the interval covers the given ID.
func (s IDSpan) Contains(id ID) bool {
	return s.Actor == id.Actor && s.From <= id.Counter && id.Counter < s.To
}

func (s IDSpan) String() string {
	return fmt.Sprintf("%d@[%d, %d)", s.Actor, s.From, s.To)
}
