package objectdb

// ByKey is a secondary index that groups ids by a derived key (e.g.
// "limit orders by seller", "call orders by borrower"). It holds only
// ids, never entities, per the Object DB's ownership contract: indexes
// hold back-references only. Wire it to a primary Index[T] via its
// OnInsert/OnRemove/OnPreModify/OnPostModify hooks so it relocates
// entries automatically when the key-bearing fields change.
type ByKey[K comparable, T Entity] struct {
	keyOf func(T) K
	ids   map[K]map[ID]struct{}
}

// NewByKey builds a secondary index keyed by keyOf(entity) and attaches
// it to ix so it stays in sync with every insert/modify/remove.
func NewByKey[K comparable, T Entity](ix *Index[T], keyOf func(T) K) *ByKey[K, T] {
	bk := &ByKey[K, T]{keyOf: keyOf, ids: make(map[K]map[ID]struct{})}
	ix.OnInsert(func(v T) { bk.add(keyOf(v), v.ID()) })
	ix.OnRemove(func(v T) { bk.remove(keyOf(v), v.ID()) })
	ix.OnPreModify(func(old T) { bk.remove(keyOf(old), old.ID()) })
	ix.OnPostModify(func(v T) { bk.add(keyOf(v), v.ID()) })
	return bk
}

func (bk *ByKey[K, T]) add(k K, id ID) {
	set, ok := bk.ids[k]
	if !ok {
		set = make(map[ID]struct{})
		bk.ids[k] = set
	}
	set[id] = struct{}{}
}

func (bk *ByKey[K, T]) remove(k K, id ID) {
	set, ok := bk.ids[k]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(bk.ids, k)
	}
}

// Lookup returns every id currently filed under k.
func (bk *ByKey[K, T]) Lookup(k K) []ID {
	set := bk.ids[k]
	out := make([]ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Count returns how many entities are filed under k.
func (bk *ByKey[K, T]) Count(k K) int { return len(bk.ids[k]) }
