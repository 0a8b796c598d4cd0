// Package engine is the single mutation entry point of the appointment book.
// Every operation reads the snapshot at the history cursor, computes a full
// replacement snapshot and either commits it or stages it behind a pending
// confirmation. Partial writes never occur.
package engine

import (
	"sync"

	"turnero/internal/conflict"
	"turnero/internal/history"
	appLog "turnero/internal/log"
	"turnero/internal/model"
)

// Engine owns the history stack and the at-most-one staged change awaiting
// user confirmation. All methods are safe for concurrent use, though the
// application assumes a single active writer.
type Engine struct {
	mu       sync.Mutex
	hist     *history.Stack
	pending  *PendingChange
	onCommit func(model.AppState)
}

// PendingChange is a staged mutation that collided with existing slots and
// needs explicit confirmation. Accepting it removes the listed occupants and
// commits the replacement snapshot; discarding it leaves state untouched.
type PendingChange struct {
	ID        string                  `json:"id"`
	Summary   string                  `json:"summary"`
	Conflicts []conflict.SlotConflict `json:"conflicts"`

	next model.AppState
}

// Result is the outcome of one operation. Exactly one of the following holds:
// the operation committed (Committed true), it staged a pending change
// (Pending non-nil), or it was a no-op with an advisory Notice.
type Result struct {
	Committed bool
	Notice    string
	Pending   *PendingChange
	State     model.AppState
}

// New creates an engine seeded with the initial snapshot as history entry 0.
func New(capacity int, initial model.AppState) *Engine {
	return &Engine{hist: history.New(capacity, initial)}
}

// OnCommit registers a hook invoked with every committed snapshot, after the
// history cursor has moved. Used to persist state to the local store.
func (e *Engine) OnCommit(fn func(model.AppState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCommit = fn
}

// State returns a copy of the current snapshot.
func (e *Engine) State() model.AppState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.Current().Clone()
}

// CanUndo reports whether an undo step is available.
func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.CanUndo()
}

// CanRedo reports whether a redo step is available.
func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.CanRedo()
}

// Undo steps the cursor back one snapshot.
func (e *Engine) Undo() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, moved := e.hist.Undo()
	if moved {
		e.afterCursorMove(st)
	}
	return Result{Committed: moved, State: st.Clone()}
}

// Redo steps the cursor forward one snapshot.
func (e *Engine) Redo() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, moved := e.hist.Redo()
	if moved {
		e.afterCursorMove(st)
	}
	return Result{Committed: moved, State: st.Clone()}
}

// Pending returns the currently staged change, if any.
func (e *Engine) Pending() *PendingChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Resolve finalizes a staged change: accept commits the staged snapshot
// (replacing the conflicting occupants), discard drops it with no mutation.
func (e *Engine) Resolve(id string, accept bool) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil || e.pending.ID != id {
		return Result{Notice: "no pending change with that id", State: e.hist.Current().Clone()}
	}
	p := e.pending
	e.pending = nil
	if !accept {
		appLog.Info("pending change discarded", "id", p.ID, "summary", p.Summary)
		return Result{State: e.hist.Current().Clone()}
	}
	appLog.Info("pending change accepted", "id", p.ID, "summary", p.Summary,
		"replaced_slots", len(p.Conflicts))
	return e.commit(p.next)
}

// DNIConflicts returns the standing DNI identity conflicts of the current
// patient list.
func (e *Engine) DNIConflicts() []conflict.DNIPair {
	e.mu.Lock()
	defer e.mu.Unlock()
	return conflict.ScanDNI(e.hist.Current().Patients)
}

// commit appends next to the history and runs the persistence hook. A staged
// change, if any, is invalidated: its snapshot was computed against a base
// that is no longer current.
// Caller must hold e.mu.
func (e *Engine) commit(next model.AppState) Result {
	e.pending = nil
	e.hist.Commit(next)
	if e.onCommit != nil {
		e.onCommit(next)
	}
	return Result{Committed: true, State: next.Clone()}
}

// afterCursorMove runs the persistence hook for undo/redo, which change the
// effective snapshot without appending to the history. A staged change, if
// any, is invalidated for the same reason as in commit.
// Caller must hold e.mu.
func (e *Engine) afterCursorMove(st model.AppState) {
	e.pending = nil
	if e.onCommit != nil {
		e.onCommit(st)
	}
}

// stageOrCommit inserts candidates into base. Without collisions the new
// snapshot commits immediately. With collisions the would-be snapshot (with
// the occupants of the colliding slots removed) is staged for confirmation;
// a previously staged change, if any, is displaced.
// Caller must hold e.mu.
func (e *Engine) stageOrCommit(base model.AppState, candidates []model.Appointment, summary string) Result {
	conflicts := conflict.SlotConflicts(base.Appointments, candidates, base.Patients)
	if len(conflicts) == 0 {
		next := base
		next.Appointments = append(next.Appointments, candidates...)
		return e.commit(next)
	}

	displaced := make(map[string]bool, len(conflicts))
	for _, c := range conflicts {
		displaced[c.OccupantID] = true
	}
	next := base
	next.Appointments = make([]model.Appointment, 0, len(base.Appointments)+len(candidates))
	for _, a := range base.Appointments {
		if !displaced[a.ID] {
			next.Appointments = append(next.Appointments, a)
		}
	}
	next.Appointments = append(next.Appointments, candidates...)

	p := &PendingChange{
		ID:        model.NewID(),
		Summary:   summary,
		Conflicts: conflicts,
		next:      next,
	}
	e.pending = p
	appLog.Info("mutation staged for confirmation", "id", p.ID, "summary", summary,
		"conflicts", len(conflicts))
	return Result{Pending: p, State: e.hist.Current().Clone()}
}
