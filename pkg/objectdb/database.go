package objectdb

// Database coordinates a set of typed Index[T] stores under one undo
// stack, per spec.md §4.1. It does not know the concrete entity types;
// callers keep their own typed *Index[T] handles (e.g. in a chainstate
// struct) and pass them to the package-level Create/Modify/Remove/Find
// helpers below, which route undo bookkeeping through the Database.
type Database struct {
	stack []*Session
}

// NewDatabase returns an empty, no-session database.
func NewDatabase() *Database { return &Database{} }

// Depth reports the number of outstanding nested undo sessions.
func (db *Database) Depth() int { return len(db.stack) }

func (db *Database) top() *Session {
	if len(db.stack) == 0 {
		return nil
	}
	return db.stack[len(db.stack)-1]
}

// StartUndoSession begins a new nested session (spec.md §4.1's
// `start_undo_session`).
func (db *Database) StartUndoSession() *Session {
	s := newSession(db)
	db.stack = append(db.stack, s)
	return s
}

// Create assigns a fresh id on ix, invokes ctor exactly once on the
// zero-initialized value, and inserts it. Fails only at the per-index
// instance-counter limit.
func Create[T Entity](db *Database, ix *Index[T], ctor func(T)) (T, error) {
	if s := db.top(); s != nil {
		s.snapshotNextInstance(ix)
	}
	inst, err := ix.allocInstance()
	if err != nil {
		var zero T
		return zero, err
	}
	v := ix.ctor()
	v.setID(ID{Space: ix.space(), Type: ix.typ(), Instance: inst})
	ctor(v)

	if s := db.top(); s != nil {
		s.noteCreate(ix, inst)
	}
	ix.rawInsert(v)
	return v, nil
}

// Modify runs mutator on the writable entity v, first cloning the prior
// value into the current undo session (iff not already recorded there
// this session). mutator must not change v's id. Registered pre/post
// index hooks fire around the mutation so secondary indexes can
// relocate the entry.
func Modify[T Entity](db *Database, ix *Index[T], v T, mutator func(T)) {
	instance := v.ID().Instance
	if s := db.top(); s != nil {
		s.noteModify(ix, instance, func() any { return ix.cloneAny(v) })
	}
	for _, f := range ix.preModify {
		f(v)
	}
	mutator(v)
	for _, f := range ix.postModify {
		f(v)
	}
}

// Remove erases v from ix. The prior value is captured in the current
// undo session per the create/remove and modify/remove tie-breaks of
// spec.md §4.1.
func Remove[T Entity](db *Database, ix *Index[T], v T) {
	instance := v.ID().Instance
	if s := db.top(); s != nil {
		s.noteRemove(ix, instance, func() any { return ix.cloneAny(v) })
	}
	ix.rawRemove(instance)
}

// Find returns the entity for id, or the zero value and false.
func Find[T Entity](ix *Index[T], id ID) (T, bool) {
	return ix.Find(id)
}

// Get asserts the entity exists.
func Get[T Entity](ix *Index[T], id ID) T {
	return ix.Get(id)
}
