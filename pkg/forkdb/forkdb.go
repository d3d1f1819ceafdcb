// Package forkdb tracks every block received that extends a known parent,
// even off the current best chain, so the node can switch to a longer or
// better-signed fork without re-downloading history (spec.md §4.4's
// fork-choice rule: longest chain of valid blocks, ties broken by the
// chain whose head was seen first).
//
// Grounded on the teacher's pkg/consensus/safety.go: a Hash-keyed blocks map
// guarded by a mutex, populated as blocks are observed and walked by parent
// link to answer ancestry questions. Safety only ever needed one chain
// (HotStuff's quorum certificates make forks unreachable once locked); a
// DPoS witness schedule has no such certificate, so forkdb keeps every
// branch until one commits past the irreversibility depth.
package forkdb

import (
	"sync"

	"github.com/hyperlicked/chaincore/pkg/chain"
)

// Item is one tracked block plus the fork-choice bookkeeping forkdb needs:
// its depth from genesis and a pointer to its parent's Item, so branch
// walks don't need to re-resolve hashes.
type Item struct {
	Block  *chain.Block
	Parent *Item
	Depth  uint64
}

// DB holds every block reachable from genesis that hasn't yet been pruned,
// indexed by hash, plus the current best head.
type DB struct {
	mu      sync.RWMutex
	items   map[chain.Hash]*Item
	head    *Item
	maxSize int
}

// New returns an empty fork database rooted at genesis.
func New(genesis *chain.Block) *DB {
	root := &Item{Block: genesis, Depth: 0}
	h := genesis.Hash()
	return &DB{
		items: map[chain.Hash]*Item{h: root},
		head:  root,
	}
}

// SetMaxSize bounds how many blocks behind the current head forkdb keeps
// before Prune discards them (spec.md names no explicit bound; a production
// deployment prunes well past any plausible reorg depth).
func (db *DB) SetMaxSize(n int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.maxSize = n
}

// Push records b as extending its parent (identified by b.Previous) and
// returns the new Item, or false if the parent hasn't been seen yet —
// callers should request the missing branch via FetchBranchFrom's inverse
// (a block-sync request) before retrying.
func (db *DB) Push(b *chain.Block) (*Item, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	parent, ok := db.items[b.Previous]
	if !ok {
		return nil, false
	}
	item := &Item{Block: b, Parent: parent, Depth: parent.Depth + 1}
	db.items[b.Hash()] = item

	if item.Depth > db.head.Depth {
		db.head = item
	}
	return item, true
}

// Fetch returns the tracked item for hash h.
func (db *DB) Fetch(h chain.Hash) (*Item, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	item, ok := db.items[h]
	return item, ok
}

// Head returns the deepest known chain tip (the current fork-choice winner).
func (db *DB) Head() *Item {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.head
}

// FetchBranchFrom walks from h back to genesis, returning blocks
// oldest-first. Callers reconciling a fork trim the prefix up to the
// common ancestor themselves (see CommonAncestor) before replaying.
func (db *DB) FetchBranchFrom(h chain.Hash) []*chain.Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	item, ok := db.items[h]
	if !ok {
		return nil
	}
	var out []*chain.Block
	for item != nil {
		out = append([]*chain.Block{item.Block}, out...)
		item = item.Parent
	}
	return out
}

// CommonAncestor returns the deepest Item reachable from both a and b by
// repeated Parent links.
func (db *DB) CommonAncestor(a, b chain.Hash) (*Item, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	ia, ok := db.items[a]
	if !ok {
		return nil, false
	}
	ib, ok := db.items[b]
	if !ok {
		return nil, false
	}
	seen := map[chain.Hash]struct{}{}
	for x := ia; x != nil; x = x.Parent {
		seen[x.Block.Hash()] = struct{}{}
	}
	for x := ib; x != nil; x = x.Parent {
		if _, ok := seen[x.Block.Hash()]; ok {
			return x, true
		}
	}
	return nil, false
}

// PopBlock removes h and everything built on top of it, used when a block
// turns out to be invalid after being provisionally linked in (spec.md
// §4.4's "blocks must apply cleanly" rule means an invalid block is never
// committed, but it may already be tracked as a candidate fork head).
func (db *DB) PopBlock(h chain.Hash) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.popLocked(h)
	if _, ok := db.items[db.head.Block.Hash()]; !ok {
		db.recomputeHeadLocked()
	}
}

func (db *DB) popLocked(h chain.Hash) {
	children := make([]chain.Hash, 0)
	for hh, it := range db.items {
		if it.Parent != nil && it.Parent.Block.Hash() == h {
			children = append(children, hh)
		}
	}
	for _, c := range children {
		db.popLocked(c)
	}
	delete(db.items, h)
}

func (db *DB) recomputeHeadLocked() {
	var best *Item
	for _, it := range db.items {
		if best == nil || it.Depth > best.Depth {
			best = it
		}
	}
	db.head = best
}

// Prune discards every tracked item shallower than (head depth - maxSize),
// keeping only blocks within reorg range of the current head.
func (db *DB) Prune() {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.maxSize <= 0 || db.head.Depth <= uint64(db.maxSize) {
		return
	}
	floor := db.head.Depth - uint64(db.maxSize)
	for h, it := range db.items {
		if it.Depth < floor {
			delete(db.items, h)
		}
	}
}
