package objectdb

import "fmt"

// sessionKey identifies one entity across the undo bookkeeping for a
// session: which index it lives in, plus its instance number (the space
// and type are implied by the index).
type sessionKey struct {
	h        handle
	instance uint64
}

// Session is a scoped record of every mutation since it began, per
// spec.md §4.1's undo state machine. A Session must be committed or
// undone exactly once; Database.StartUndoSession pushes a new session onto the
// stack, and only the topmost session may resolve.
type Session struct {
	db *Database

	oldValues map[sessionKey]any
	removed   map[sessionKey]any
	newIDs    map[sessionKey]struct{}
	nextSnap  map[handle]uint64

	resolved bool
}

func newSession(db *Database) *Session {
	return &Session{
		db:        db,
		oldValues: make(map[sessionKey]any),
		removed:   make(map[sessionKey]any),
		newIDs:    make(map[sessionKey]struct{}),
		nextSnap:  make(map[handle]uint64),
	}
}

func (s *Session) requireTop() {
	if s.resolved {
		panic("objectdb: session already committed or undone")
	}
	if len(s.db.stack) == 0 || s.db.stack[len(s.db.stack)-1] != s {
		panic("objectdb: only the topmost undo session may commit or undo")
	}
}

// Commit merges this session's diff into its parent (or, for the
// outermost session, simply finalizes — the live indices already hold
// the committed values, since Create/Modify/Remove write through).
func (s *Session) Commit() {
	s.requireTop()
	s.resolved = true
	s.db.stack = s.db.stack[:len(s.db.stack)-1]

	if len(s.db.stack) == 0 {
		return
	}
	parent := s.db.stack[len(s.db.stack)-1]

	// Next-instance snapshots: the earliest-taken snapshot for an index
	// within the whole nested stack is the one that reflects the counter
	// value before any session in the stack touched it.
	for h, v := range s.nextSnap {
		if _, ok := parent.nextSnap[h]; !ok {
			parent.nextSnap[h] = v
		}
	}

	// Removals first: an id created in the parent and removed here
	// cancels per spec.md §4.1's rollback tie-break.
	for k, v := range s.removed {
		if _, createdInParent := parent.newIDs[k]; createdInParent {
			delete(parent.newIDs, k)
			delete(parent.oldValues, k)
			continue
		}
		if old, already := parent.oldValues[k]; already {
			parent.removed[k] = old
			delete(parent.oldValues, k)
			continue
		}
		if _, already := parent.removed[k]; !already {
			parent.removed[k] = v
		}
	}

	for k, v := range s.oldValues {
		if _, createdInParent := parent.newIDs[k]; createdInParent {
			continue
		}
		if _, already := parent.oldValues[k]; already {
			continue
		}
		if _, already := parent.removed[k]; already {
			continue
		}
		parent.oldValues[k] = v
	}

	for k := range s.newIDs {
		if _, already := parent.removed[k]; already {
			continue
		}
		parent.newIDs[k] = struct{}{}
	}
}

// Undo discards this session, restoring the object database to exactly
// the state it was in when the session began.
func (s *Session) Undo() {
	s.requireTop()
	s.resolved = true
	s.db.stack = s.db.stack[:len(s.db.stack)-1]

	for k, v := range s.removed {
		k.h.rawInsertAny(v)
	}
	for k, v := range s.oldValues {
		// Retract the live value first so secondary indexes drop the
		// keys it was filed under before the prior value is re-filed.
		k.h.rawRemoveAny(k.instance)
		k.h.rawInsertAny(v)
	}
	for k := range s.newIDs {
		k.h.rawRemoveAny(k.instance)
	}
	for h, n := range s.nextSnap {
		h.restoreNextInstance(n)
	}
}

func (s *Session) snapshotNextInstance(h handle) {
	if _, ok := s.nextSnap[h]; !ok {
		s.nextSnap[h] = h.nextInstanceSnapshot()
	}
}

func (s *Session) noteCreate(h handle, instance uint64) {
	s.newIDs[sessionKey{h, instance}] = struct{}{}
}

// noteModify records the prior value of v, unless it was already created
// or already recorded as modified within this session.
func (s *Session) noteModify(h handle, instance uint64, priorClone func() any) {
	key := sessionKey{h, instance}
	if _, isNew := s.newIDs[key]; isNew {
		return
	}
	if _, already := s.oldValues[key]; already {
		return
	}
	if _, wasRemoved := s.removed[key]; wasRemoved {
		return
	}
	s.oldValues[key] = priorClone()
}

// noteRemove records id's removal, applying the create/remove
// cancellation and modify/remove merge tie-breaks of spec.md §4.1.
func (s *Session) noteRemove(h handle, instance uint64, priorClone func() any) {
	key := sessionKey{h, instance}
	if _, isNew := s.newIDs[key]; isNew {
		delete(s.newIDs, key)
		delete(s.oldValues, key)
		return
	}
	if old, already := s.oldValues[key]; already {
		s.removed[key] = old
		delete(s.oldValues, key)
		return
	}
	s.removed[key] = priorClone()
}

func (s *Session) String() string {
	return fmt.Sprintf("session(new=%d old=%d removed=%d)", len(s.newIDs), len(s.oldValues), len(s.removed))
}
