package objectdb

import (
	"fmt"
)

// ErrOutOfInstanceIds is returned by Index.allocInstance at the arithmetic
// limit of the per-(space,type) instance counter.
var ErrOutOfInstanceIds = fmt.Errorf("objectdb: out of instance ids")

// PreModifyHook and PostModifyHook let secondary indexes relocate entries
// around a primary-index mutation, per spec.md §4.1 ("Indexes receive
// pre-modify and post-modify notifications so they can relocate entries").
type PreModifyHook[T Entity] func(old T)
type PostModifyHook[T Entity] func(new T)

// Index is the primary, typed store for one (space, type) pair. It owns
// entity storage outright; anything else (secondary indexes, observers)
// holds only ids or notification hooks, never the entities themselves.
type Index[T Entity] struct {
	space Space
	typ   Type
	ctor  func() T
	clone func(T) T

	byID map[uint64]T
	next uint64

	preModify  []PreModifyHook[T]
	postModify []PostModifyHook[T]
	onInsert   []func(T)
	onRemove   []func(T)
}

// NewIndex creates a primary index for entities of type T living at
// (space, typ). ctor must return a freshly zero-valued T (a pointer to a
// zero struct) each call; clone must return a deep-enough copy for undo
// snapshots (deep enough that mutating the clone never aliases the live
// entity's mutable fields).
func NewIndex[T Entity](space Space, typ Type, ctor func() T, clone func(T) T) *Index[T] {
	return &Index[T]{
		space: space, typ: typ, ctor: ctor, clone: clone,
		byID: make(map[uint64]T),
	}
}

func (ix *Index[T]) Space() Space { return ix.space }
func (ix *Index[T]) Type() Type   { return ix.typ }

// OnInsert/OnRemove register observer callbacks invoked synchronously, in
// registration order, after an entity is inserted or removed. Observers
// must not mutate chain state (spec.md §6).
func (ix *Index[T]) OnInsert(f func(T)) { ix.onInsert = append(ix.onInsert, f) }
func (ix *Index[T]) OnRemove(f func(T)) { ix.onRemove = append(ix.onRemove, f) }

func (ix *Index[T]) OnPreModify(f PreModifyHook[T])   { ix.preModify = append(ix.preModify, f) }
func (ix *Index[T]) OnPostModify(f PostModifyHook[T]) { ix.postModify = append(ix.postModify, f) }

// Find returns the entity for id, or the zero value and false.
func (ix *Index[T]) Find(id ID) (T, bool) {
	v, ok := ix.byID[id.Instance]
	return v, ok
}

// Get asserts the entity exists.
func (ix *Index[T]) Get(id ID) T {
	v, ok := ix.Find(id)
	if !ok {
		panic(fmt.Sprintf("objectdb: no such object %s", id))
	}
	return v
}

// All returns every live entity, in unspecified order; callers that need
// determinism must sort by id themselves.
func (ix *Index[T]) All() []T {
	out := make([]T, 0, len(ix.byID))
	for _, v := range ix.byID {
		out = append(out, v)
	}
	return out
}

func (ix *Index[T]) Len() int { return len(ix.byID) }

// nextInstanceSnapshot/restore let a Session snapshot and roll back the
// counter on undo (spec.md §4.1: "Per-index next-instance counters are
// snapshotted at first create in a session and restored on undo").
func (ix *Index[T]) nextInstanceSnapshot() uint64 { return ix.next }
func (ix *Index[T]) restoreNextInstance(n uint64) { ix.next = n }

// rawInsert installs v under its already-assigned id, bypassing instance
// allocation. Used by undo to reinstall a removed entity.
func (ix *Index[T]) rawInsert(v T) {
	ix.byID[v.ID().Instance] = v
	for _, f := range ix.onInsert {
		f(v)
	}
}

// rawRemove deletes id without capturing undo state. Used by undo to
// retract a created entity.
func (ix *Index[T]) rawRemove(instance uint64) (T, bool) {
	v, ok := ix.byID[instance]
	if ok {
		delete(ix.byID, instance)
		for _, f := range ix.onRemove {
			f(v)
		}
	}
	return v, ok
}
