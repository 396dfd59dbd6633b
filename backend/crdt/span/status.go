package span

import "fmt"

// Status tracks whether a span's content currently counts toward the visible document.
// Content is visible only when it's durably applied, not deleted, and not undone.
// The three factors are independent: a deleted span can also be undone,
// and each delete must be reverted separately.
//
// All mutations go through Transition so that the activation flip signal stays accurate.
// The zero value is active: applied, no deletes, no undos.
type Status struct {
	pending     bool
	deleteCount int
	undoCount   int
}

// NewStatus returns the default status: applied, zero delete and undo counts, active.
func NewStatus() Status {
	return Status{}
}

// RestoreStatus reconstructs a status from previously serialized parts.
// It's the only way to build a non-default status without replaying transitions,
// and it validates what Transition guarantees by construction.
func RestoreStatus(pending bool, deleteCount, undoCount int) (Status, error) {
	if deleteCount < 0 {
		return Status{}, fmt.Errorf("negative delete count %d", deleteCount)
	}
	if undoCount < 0 {
		return Status{}, fmt.Errorf("negative undo count %d", undoCount)
	}

	return Status{
		pending:     pending,
		deleteCount: deleteCount,
		undoCount:   undoCount,
	}, nil
}

// IsActive reports whether the content counts toward the visible document length.
func (s Status) IsActive() bool {
	return !s.pending && s.deleteCount == 0 && s.undoCount == 0
}

// Pending reports whether the content is not yet durably applied.
func (s Status) Pending() bool { return s.pending }

// DeleteCount returns the number of outstanding deletes targeting the content.
func (s Status) DeleteCount() int { return s.deleteCount }

// UndoCount returns the depth of outstanding undos targeting the content.
func (s Status) UndoCount() int { return s.undoCount }

// StatusChange is one of the six transitions a status can go through.
type StatusChange byte

const (
	// StatusApply marks the content as durably applied.
	StatusApply StatusChange = iota + 1
	// StatusPreApply marks the content as not yet durably applied.
	StatusPreApply
	// StatusRedo reverts one outstanding undo.
	StatusRedo
	// StatusUndo records one more outstanding undo.
	StatusUndo
	// StatusDelete records one more outstanding delete.
	StatusDelete
	// StatusUndoDelete reverts one outstanding delete.
	StatusUndoDelete
)

func (c StatusChange) String() string {
	switch c {
	case StatusApply:
		return "apply"
	case StatusPreApply:
		return "pre-apply"
	case StatusRedo:
		return "redo"
	case StatusUndo:
		return "undo"
	case StatusDelete:
		return "delete"
	case StatusUndoDelete:
		return "undo-delete"
	default:
		return fmt.Sprintf("unknown(%d)", byte(c))
	}
}

// Transition applies a status change and reports whether the active/inactive
// classification flipped. Callers use the flip signal to know whether the
// owning span's contribution to cumulative length must be added or removed.
//
// Reverting a delete or an undo that was never recorded is a caller bug:
// every Redo/UndoDelete must pair with a prior Undo/Delete on the same span.
func (s *Status) Transition(change StatusChange) bool {
	wasActive := s.IsActive()

	switch change {
	case StatusApply:
		s.pending = false
	case StatusPreApply:
		s.pending = true
	case StatusRedo:
		if s.undoCount == 0 {
			panic("BUG: redo without a matching undo")
		}
		s.undoCount--
	case StatusUndo:
		s.undoCount++
	case StatusDelete:
		s.deleteCount++
	case StatusUndoDelete:
		if s.deleteCount == 0 {
			panic("BUG: undo-delete without a matching delete")
		}
		s.deleteCount--
	default:
		panic(fmt.Sprintf("BUG: unknown status change %d", byte(change)))
	}

	return s.IsActive() != wasActive
}
