// Package history keeps the bounded linear undo/redo stack of whole-book
// snapshots. Every mutating operation funnels through Commit exactly once.
package history

import "turnero/internal/model"

// DefaultCap is the default number of retained snapshots.
const DefaultCap = 50

// Stack is a linear undo/redo history over AppState snapshots. The cursor is
// always a valid index into the entries; committing while the cursor is not
// at the tail discards the redo branch.
type Stack struct {
	entries []model.AppState
	cursor  int
	cap     int
}

// New creates a history seeded with the given initial snapshot as entry 0.
func New(capacity int, initial model.AppState) *Stack {
	if capacity < 1 {
		capacity = DefaultCap
	}
	return &Stack{
		entries: []model.AppState{initial},
		cursor:  0,
		cap:     capacity,
	}
}

// Current returns the snapshot at the cursor.
func (s *Stack) Current() model.AppState {
	return s.entries[s.cursor]
}

// Commit truncates everything after the cursor, appends the new snapshot and
// advances the cursor to the new tail. When the stack exceeds its cap the
// oldest entry is evicted from the front.
func (s *Stack) Commit(next model.AppState) {
	s.entries = append(s.entries[:s.cursor+1], next)
	if len(s.entries) > s.cap {
		s.entries = s.entries[len(s.entries)-s.cap:]
	}
	s.cursor = len(s.entries) - 1
}

// Undo moves the cursor back one entry. It reports whether a move happened.
func (s *Stack) Undo() (model.AppState, bool) {
	if s.cursor == 0 {
		return s.Current(), false
	}
	s.cursor--
	return s.Current(), true
}

// Redo moves the cursor forward one entry. It reports whether a move happened.
func (s *Stack) Redo() (model.AppState, bool) {
	if s.cursor >= len(s.entries)-1 {
		return s.Current(), false
	}
	s.cursor++
	return s.Current(), true
}

// CanUndo reports whether Undo would move.
func (s *Stack) CanUndo() bool { return s.cursor > 0 }

// CanRedo reports whether Redo would move.
func (s *Stack) CanRedo() bool { return s.cursor < len(s.entries)-1 }

// Len returns the number of retained snapshots.
func (s *Stack) Len() int { return len(s.entries) }
