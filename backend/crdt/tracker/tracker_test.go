package tracker

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"weft/backend/crdt/span"
)

func TestTracker_LocalTypingCoalesces(t *testing.T) {
	tr := New()

	// Actor 0 types "ab" one character at a time: each insertion is anchored
	// at the previous character, so the runs coalesce into one.
	require.NoError(t, tr.Integrate(
		span.New(span.NewID(0, 0), 1, span.MaybeID{}, span.MaybeID{}),
		span.MaybeID{},
	))
	require.NoError(t, tr.Integrate(
		span.New(span.NewID(0, 1), 1, span.SomeID(span.NewID(0, 0)), span.MaybeID{}),
		span.SomeID(span.NewID(0, 0)),
	))

	require.Equal(t, 1, tr.RunCount())
	require.Equal(t, 2, tr.VisibleLen())
	require.Equal(t, 2, tr.ContentLen())
}

func TestTracker_IntegrateMidRunSplitsAnchor(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Integrate(
		span.New(span.NewID(0, 0), 4, span.MaybeID{}, span.MaybeID{}),
		span.MaybeID{},
	))

	// Actor 1 inserts between units 1 and 2 of actor 0's run.
	ins := span.New(span.NewID(1, 0), 2,
		span.SomeID(span.NewID(0, 1)), span.SomeID(span.NewID(0, 2)))
	require.NoError(t, tr.Integrate(ins, span.SomeID(span.NewID(0, 1))))

	require.Equal(t, 3, tr.RunCount())
	require.Equal(t, 6, tr.VisibleLen())

	var got []span.ID
	for s := range tr.Runs() {
		got = append(got, s.ID)
	}
	require.Equal(t, []span.ID{
		span.NewID(0, 0),
		span.NewID(1, 0),
		span.NewID(0, 2),
	}, got)
}

func TestTracker_IntegrateRejectsUnknownAnchor(t *testing.T) {
	tr := New()
	err := tr.Integrate(
		span.New(span.NewID(0, 0), 1, span.MaybeID{}, span.MaybeID{}),
		span.SomeID(span.NewID(9, 9)),
	)
	require.ErrorIs(t, err, ErrCausalityViolation)
}

func TestTracker_IntegrateRejectsDuplicates(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Integrate(
		span.New(span.NewID(0, 0), 4, span.MaybeID{}, span.MaybeID{}),
		span.MaybeID{},
	))

	err := tr.Integrate(
		span.New(span.NewID(0, 2), 4, span.MaybeID{}, span.MaybeID{}),
		span.MaybeID{},
	)
	require.Error(t, err)
}

func TestTracker_DeleteWholeRun(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Integrate(
		span.New(span.NewID(0, 0), 4, span.MaybeID{}, span.MaybeID{}),
		span.MaybeID{},
	))

	delta, err := tr.Update(span.NewIDSpan(0, 0, 4), span.StatusDelete)
	require.NoError(t, err)
	require.Equal(t, -4, delta)
	require.Equal(t, 0, tr.VisibleLen())
	require.Equal(t, 4, tr.ContentLen(), "tombstones keep their physical extent")
	require.Equal(t, 1, tr.RunCount())

	// A second delete of the same range changes nothing visible.
	delta, err = tr.Update(span.NewIDSpan(0, 0, 4), span.StatusDelete)
	require.NoError(t, err)
	require.Equal(t, 0, delta)

	// Both deletes must be reverted before the content comes back.
	delta, err = tr.Update(span.NewIDSpan(0, 0, 4), span.StatusUndoDelete)
	require.NoError(t, err)
	require.Equal(t, 0, delta)

	delta, err = tr.Update(span.NewIDSpan(0, 0, 4), span.StatusUndoDelete)
	require.NoError(t, err)
	require.Equal(t, 4, delta)
	require.Equal(t, 4, tr.VisibleLen())
}

func TestTracker_DeleteMidRunSplits(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Integrate(
		span.New(span.NewID(0, 0), 6, span.MaybeID{}, span.MaybeID{}),
		span.MaybeID{},
	))

	delta, err := tr.Update(span.NewIDSpan(0, 2, 4), span.StatusDelete)
	require.NoError(t, err)
	require.Equal(t, -2, delta)
	require.Equal(t, 4, tr.VisibleLen())
	require.Equal(t, 6, tr.ContentLen())
	require.Equal(t, 3, tr.RunCount())

	var lens []int
	var visible []int
	for s := range tr.Runs() {
		lens = append(lens, s.ContentLen())
		visible = append(visible, s.Len())
	}
	require.Equal(t, []int{2, 2, 2}, lens)
	require.Equal(t, []int{2, 0, 2}, visible)

	// Reverting the delete restores visibility. The fragments stay separate
	// runs: their rewritten anchors record the split, and the strict
	// mergeability rules keep them apart.
	delta, err = tr.Update(span.NewIDSpan(0, 2, 4), span.StatusUndoDelete)
	require.NoError(t, err)
	require.Equal(t, 2, delta)
	require.Equal(t, 6, tr.VisibleLen())
	require.Equal(t, 3, tr.RunCount())
}

func TestTracker_UpdateAcrossRuns(t *testing.T) {
	tr := New()

	// Two runs by actor 0 with a run by actor 1 wedged in between.
	require.NoError(t, tr.Integrate(
		span.New(span.NewID(0, 0), 4, span.MaybeID{}, span.MaybeID{}),
		span.MaybeID{},
	))
	require.NoError(t, tr.Integrate(
		span.New(span.NewID(1, 0), 3, span.SomeID(span.NewID(0, 1)), span.SomeID(span.NewID(0, 2))),
		span.SomeID(span.NewID(0, 1)),
	))

	// Deleting actor 0's units [1, 4) touches both of its fragments but not
	// actor 1's run sitting between them.
	delta, err := tr.Update(span.NewIDSpan(0, 1, 4), span.StatusDelete)
	require.NoError(t, err)
	require.Equal(t, -3, delta)
	require.Equal(t, 4, tr.VisibleLen())
	require.Equal(t, 7, tr.ContentLen())

	for s := range tr.Runs() {
		if s.ID.Actor == 1 {
			require.True(t, s.Status.IsActive(), "bystander run must be untouched")
		}
	}
}

func TestTracker_UpdateRejectsUnknownRange(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Integrate(
		span.New(span.NewID(0, 0), 4, span.MaybeID{}, span.MaybeID{}),
		span.MaybeID{},
	))

	_, err := tr.Update(span.NewIDSpan(0, 2, 8), span.StatusDelete)
	require.ErrorIs(t, err, ErrCausalityViolation, "partially known range must be rejected")

	_, err = tr.Update(span.NewIDSpan(5, 0, 1), span.StatusDelete)
	require.ErrorIs(t, err, ErrCausalityViolation)

	require.Equal(t, 4, tr.VisibleLen(), "failed update must not modify anything")
	require.Equal(t, 1, tr.RunCount())
}

func TestTracker_PendingContentIsInvisible(t *testing.T) {
	tr := New()

	s := span.New(span.NewID(0, 0), 3, span.MaybeID{}, span.MaybeID{})
	s.Status.Transition(span.StatusPreApply)
	require.NoError(t, tr.Integrate(s, span.MaybeID{}))

	require.Equal(t, 0, tr.VisibleLen())
	require.Equal(t, 3, tr.ContentLen())

	delta, err := tr.Update(span.NewIDSpan(0, 0, 3), span.StatusApply)
	require.NoError(t, err)
	require.Equal(t, 3, delta)
	require.Equal(t, 3, tr.VisibleLen())
}

func TestTracker_VisibleRange(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Integrate(
		span.New(span.NewID(0, 1), 4, span.SomeID(span.NewID(0, 0)), span.MaybeID{}),
		span.MaybeID{},
	))
	require.NoError(t, tr.Append(
		span.New(span.NewID(0, 5), 4, span.SomeID(span.NewID(0, 0)), span.SomeID(span.NewID(0, 1))),
	))

	frags, err := tr.VisibleRange(2, 6)
	require.NoError(t, err)

	lens := make([]int, len(frags))
	for i, f := range frags {
		lens[i] = f.ContentLen()
	}
	require.Equal(t, []int{2, 2}, lens)
	require.Equal(t, span.NewID(0, 3), frags[0].ID)
	require.Equal(t, span.NewID(0, 5), frags[1].ID)

	// Tombstones are skipped when counting positions.
	_, err = tr.Update(span.NewIDSpan(0, 1, 5), span.StatusDelete)
	require.NoError(t, err)

	frags, err = tr.VisibleRange(0, 2)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	require.Equal(t, span.NewID(0, 5), frags[0].ID)

	_, err = tr.VisibleRange(0, 100)
	require.Error(t, err)
}

func TestTracker_SpanAt(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Integrate(
		span.New(span.NewID(0, 0), 4, span.MaybeID{}, span.MaybeID{}),
		span.MaybeID{},
	))

	s, err := tr.SpanAt(2)
	require.NoError(t, err)
	require.Equal(t, span.NewID(0, 2), s.ID)
	require.Equal(t, 1, s.ContentLen())

	_, err = tr.SpanAt(4)
	require.Error(t, err)
}

func TestTracker_QueriesDontMutate(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Integrate(
		span.New(span.NewID(0, 0), 4, span.MaybeID{}, span.MaybeID{}),
		span.MaybeID{},
	))

	_, err := tr.VisibleRange(1, 3)
	require.NoError(t, err)
	require.Equal(t, 1, tr.RunCount(), "range queries must not split stored runs")

	runs := slices.Collect(tr.Runs())
	require.Len(t, runs, 1)
	require.Equal(t, 4, runs[0].ContentLen())
}
