// Package tracker stores insertion spans in document order and translates
// incoming events (insert, delete, undo, redo, apply) into status transitions
// and structural splits on the affected spans. It is the single-writer owner
// of the spans it holds: slicing and merging happen here, synchronously,
// serialized by whatever transaction layer drives it.
//
// Concurrent-ordering resolution is not done here: callers supply the final
// placement anchor for every insertion, and the tracker only splits runs when
// an anchor or an event boundary falls mid-run.
package tracker

import (
	"fmt"
	"iter"
	"strings"

	"roci.dev/fracdex"

	"weft/backend/crdt/span"
	"weft/backend/util/btree"
)

// ErrCausalityViolation is returned when an event references content
// that is not (or not fully) known to the tracker.
var ErrCausalityViolation = fmt.Errorf("causality violation")

// Branching factor of the order and lookup indexes.
const indexDegree = 10

// Tracker is a run-length store of insertion spans in document order.
//
// Document order is kept with fractional order keys, so placing a span
// between two others never moves its neighbours. A second index maps a run's
// start ID to its order key, which makes events addressed by identifier
// ranges cheap to resolve: runs of one actor can't overlap in counter space,
// so the covering run for any ID is found by seeking backwards.
type Tracker struct {
	items *btree.Map[string, *span.Span] // order key -> span
	index *btree.Map[span.ID, string]    // run start ID -> order key

	visibleLen int
	contentLen int
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		items: btree.New[string, *span.Span](indexDegree, strings.Compare),
		index: btree.New[span.ID, string](indexDegree, span.ID.Compare),
	}
}

// VisibleLen returns the total visible document length.
func (t *Tracker) VisibleLen() int { return t.visibleLen }

// ContentLen returns the total physical length, tombstones included.
func (t *Tracker) ContentLen() int { return t.contentLen }

// RunCount returns the number of stored runs after coalescing.
func (t *Tracker) RunCount() int { return t.items.Len() }

// Runs returns an iterator over the stored runs in document order.
// The yielded spans must not be mutated by the caller.
func (t *Tracker) Runs() iter.Seq[*span.Span] {
	return func(yield func(*span.Span) bool) {
		for _, s := range t.items.Items() {
			if !yield(s) {
				return
			}
		}
	}
}

// Integrate places a new span into the document. The span goes immediately
// after the content unit identified by after, or at the very beginning of the
// document when after is absent. If after falls mid-run, the anchor run is
// split first. Afterwards the insertion point is coalesced with its
// neighbours where possible.
func (t *Tracker) Integrate(s *span.Span, after span.MaybeID) error {
	if err := t.checkUnknown(s.IDSpan()); err != nil {
		return err
	}

	var leftKey, rightKey string
	if !after.Ok {
		rightKey = t.firstKey()
	} else {
		anchorKey, anchor, ok := t.findRun(after.ID)
		if !ok {
			return fmt.Errorf("%w: insertion anchor %s is not known", ErrCausalityViolation, after.ID)
		}

		offset := int(after.ID.Counter-anchor.ID.Counter) + 1
		if offset < anchor.ContentLen() {
			// The anchor is mid-run: split it and go between the halves.
			t.splitRun(anchorKey, anchor, offset)
		}
		leftKey = anchorKey
		rightKey = t.keyAfter(anchorKey)
	}

	key, err := fracdex.KeyBetween(leftKey, rightKey)
	if err != nil {
		return fmt.Errorf("placing span %s: %w", s.ID, err)
	}
	t.setRun(key, s)

	t.compactAround(leftKey, key)
	return nil
}

// Update applies one status change to every content unit in the target range,
// splitting boundary runs as needed, and returns the net change of the
// visible document length. The whole range must be known to the tracker;
// otherwise nothing is modified and ErrCausalityViolation is returned.
func (t *Tracker) Update(target span.IDSpan, change span.StatusChange) (delta int, err error) {
	if target.Len() == 0 {
		return 0, nil
	}

	affected, err := t.collectOverlapping(target)
	if err != nil {
		return 0, err
	}

	visBefore := t.visibleLen

	for _, a := range affected {
		s := a.span
		from := max(target.From, s.ID.Counter)
		to := min(target.To, s.ID.Counter+span.Counter(s.ContentLen()))

		if int(to-from) == s.ContentLen() {
			// Whole run targeted: transition in place,
			// using the flip signal to maintain the cumulative length.
			if s.Status.Transition(change) {
				if s.Status.IsActive() {
					t.visibleLen += s.ContentLen()
				} else {
					t.visibleLen -= s.ContentLen()
				}
			}
			continue
		}

		// The boundary falls mid-run: carve out the targeted part.
		relFrom := int(from - s.ID.Counter)
		relTo := int(to - s.ID.Counter)

		var parts []*span.Span
		if relFrom > 0 {
			parts = append(parts, s.Slice(0, relFrom))
		}
		mid := s.Slice(relFrom, relTo)
		mid.Status.Transition(change)
		parts = append(parts, mid)
		if relTo < s.ContentLen() {
			parts = append(parts, s.Slice(relTo, s.ContentLen()))
		}

		t.replaceRun(a.key, s, parts)
	}

	first := affected[0].key
	last := affected[len(affected)-1].key
	t.compactAround(t.keyBefore(first), last)

	return t.visibleLen - visBefore, nil
}

// VisibleRange returns independent fragments covering the visible position
// range [from, to). Tombstoned and unapplied runs occupy no positions.
func (t *Tracker) VisibleRange(from, to int) ([]*span.Span, error) {
	if from < 0 || to < from || to > t.visibleLen {
		return nil, fmt.Errorf("visible range [%d, %d) out of bounds for document length %d", from, to, t.visibleLen)
	}

	var out []*span.Span
	pos := 0
	for _, s := range t.items.Items() {
		vlen := s.Len()
		start, end := pos, pos+vlen
		pos = end

		if end <= from || vlen == 0 {
			continue
		}
		if start >= to {
			break
		}

		out = append(out, s.Slice(max(from-start, 0), min(to-start, vlen)))
	}

	return out, nil
}

// SpanAt returns a one-unit fragment at the given visible position.
func (t *Tracker) SpanAt(pos int) (*span.Span, error) {
	frags, err := t.VisibleRange(pos, pos+1)
	if err != nil {
		return nil, err
	}
	if len(frags) != 1 {
		panic("BUG: one-unit range must yield exactly one fragment")
	}
	return frags[0], nil
}

// Append places a span at the end of the document without any anchor
// resolution. Used when rebuilding a tracker from a snapshot, where document
// order is already known.
func (t *Tracker) Append(s *span.Span) error {
	if err := t.checkUnknown(s.IDSpan()); err != nil {
		return err
	}

	key, err := fracdex.KeyBetween(t.lastKey(), "")
	if err != nil {
		return fmt.Errorf("appending span %s: %w", s.ID, err)
	}
	t.setRun(key, s)
	return nil
}

type affectedRun struct {
	key  string
	span *span.Span
}

// collectOverlapping returns the runs overlapping the target range in
// counter order, failing unless they cover the range completely.
func (t *Tracker) collectOverlapping(target span.IDSpan) ([]affectedRun, error) {
	var out []affectedRun
	covered := 0

	// A run starting before the range may still cover its beginning.
	if key, s, ok := t.findRun(span.NewID(target.Actor, target.From)); ok {
		out = append(out, affectedRun{key: key, span: s})
		covered += min(int(s.ID.Counter)+s.ContentLen(), int(target.To)) - int(target.From)
	}

	for startID, key := range t.index.Seek(span.NewID(target.Actor, target.From)) {
		if startID.Actor != target.Actor || startID.Counter >= target.To {
			break
		}
		if len(out) > 0 && out[len(out)-1].key == key {
			continue
		}

		s := t.items.GetMaybe(key)
		if s == nil {
			panic("BUG: dangling run index entry")
		}
		out = append(out, affectedRun{key: key, span: s})
		covered += min(int(s.ID.Counter)+s.ContentLen(), int(target.To)) - int(startID.Counter)
	}

	if covered != target.Len() {
		return nil, fmt.Errorf("%w: target %s covers only %d of %d units", ErrCausalityViolation, target, covered, target.Len())
	}

	return out, nil
}

// findRun locates the run covering the given ID.
func (t *Tracker) findRun(id span.ID) (orderKey string, s *span.Span, ok bool) {
	for startID, key := range t.index.SeekReverse(id) {
		if startID.Actor != id.Actor {
			break
		}

		s := t.items.GetMaybe(key)
		if s == nil {
			panic("BUG: dangling run index entry")
		}
		if s.ContainsID(id) {
			return key, s, true
		}
		break
	}

	return "", nil, false
}

// checkUnknown fails if any part of the given range is already stored.
func (t *Tracker) checkUnknown(r span.IDSpan) error {
	if _, s, ok := t.findRun(span.NewID(r.Actor, r.From)); ok {
		return fmt.Errorf("span %s overlaps known run %s", r, s.ID)
	}

	for startID := range t.index.Seek(span.NewID(r.Actor, r.From)) {
		if startID.Actor == r.Actor && startID.Counter < r.To {
			return fmt.Errorf("span %s overlaps known run %s", r, startID)
		}
		break
	}

	return nil
}

// splitRun replaces the run at key with its two halves cut at offset.
func (t *Tracker) splitRun(key string, s *span.Span, offset int) {
	t.replaceRun(key, s, []*span.Span{
		s.Slice(0, offset),
		s.Slice(offset, s.ContentLen()),
	})
}

// replaceRun swaps the run at key for the given parts, keeping document
// order. The first part stays at the old key, which it can, because slicing
// preserves the run's start ID at the leading fragment.
func (t *Tracker) replaceRun(key string, old *span.Span, parts []*span.Span) {
	if parts[0].ID != old.ID {
		panic("BUG: first replacement part must keep the run's start ID")
	}

	rightKey := t.keyAfter(key)

	t.dropRun(key, old)
	t.setRun(key, parts[0])

	// Chain the remaining parts between the old key and its old successor.
	leftKey := key
	for _, p := range parts[1:] {
		k, err := fracdex.KeyBetween(leftKey, rightKey)
		if err != nil {
			panic(fmt.Sprintf("BUG: generating order key between %q and %q: %v", leftKey, rightKey, err))
		}
		t.setRun(k, p)
		leftKey = k
	}
}

func (t *Tracker) setRun(key string, s *span.Span) {
	if t.items.Set(key, s) {
		panic("BUG: duplicate order key")
	}
	if t.index.Set(s.ID, key) {
		panic("BUG: duplicate run start ID")
	}
	t.contentLen += s.ContentLen()
	t.visibleLen += s.Len()
}

func (t *Tracker) dropRun(key string, s *span.Span) {
	if !t.items.Delete(key) {
		panic("BUG: dropping unknown order key")
	}
	if !t.index.Delete(s.ID) {
		panic("BUG: dropping unknown run start ID")
	}
	t.contentLen -= s.ContentLen()
	t.visibleLen -= s.Len()
}

// compactAround coalesces mergeable neighbours in the window spanning from
// the run before fromKey through the run after toKey.
func (t *Tracker) compactAround(fromKey, toKey string) {
	type entry struct {
		key string
		s   *span.Span
	}

	start := t.keyBefore(fromKey)
	if start == "" {
		start = t.firstKey()
	}
	if start == "" {
		return
	}

	var window []entry
	for key, s := range t.items.Seek(start) {
		window = append(window, entry{key: key, s: s})
		if key > toKey {
			// One successor beyond the window is enough.
			break
		}
	}

	for i := 0; i+1 < len(window); i++ {
		cur, next := window[i], window[i+1]
		if !cur.s.CanMerge(next.s) {
			continue
		}

		t.dropRun(next.key, next.s)
		t.contentLen -= cur.s.ContentLen()
		t.visibleLen -= cur.s.Len()
		cur.s.Merge(next.s)
		t.contentLen += cur.s.ContentLen()
		t.visibleLen += cur.s.Len()

		window[i+1] = cur
	}
}

func (t *Tracker) firstKey() string {
	key, _, _ := t.items.GetAt(0)
	return key
}

func (t *Tracker) lastKey() string {
	key, _, _ := t.items.GetAt(t.items.Len() - 1)
	return key
}

// keyAfter returns the order key immediately after k, or "" if k is last.
func (t *Tracker) keyAfter(k string) string {
	for key := range t.items.Seek(k) {
		if key == k {
			continue
		}
		return key
	}
	return ""
}

// keyBefore returns the order key immediately before k, or "" if k is first.
func (t *Tracker) keyBefore(k string) string {
	if k == "" {
		return ""
	}
	for key := range t.items.SeekReverse(k) {
		if key == k {
			continue
		}
		return key
	}
	return ""
}
