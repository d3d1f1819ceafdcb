package forkdb

import (
	"testing"

	"github.com/hyperlicked/chaincore/pkg/chain"
)

func block(height uint64, ts int64, prev chain.Hash) *chain.Block {
	return &chain.Block{Height: height, Timestamp: ts, Previous: prev}
}

func TestPushExtendsKnownParent(t *testing.T) {
	genesis := block(0, 0, chain.Hash{})
	db := New(genesis)

	b1 := block(1, 1, genesis.Hash())
	item, ok := db.Push(b1)
	if !ok {
		t.Fatalf("want push to succeed")
	}
	if item.Depth != 1 {
		t.Fatalf("want depth 1, got %d", item.Depth)
	}
	if db.Head().Block.Hash() != b1.Hash() {
		t.Fatalf("want head to advance to b1")
	}
}

func TestPushRejectsUnknownParent(t *testing.T) {
	genesis := block(0, 0, chain.Hash{})
	db := New(genesis)

	orphan := block(5, 5, chain.Hash{1, 2, 3})
	if _, ok := db.Push(orphan); ok {
		t.Fatalf("want push of orphan block to fail")
	}
}

func TestLongestChainWins(t *testing.T) {
	genesis := block(0, 0, chain.Hash{})
	db := New(genesis)

	a1 := block(1, 1, genesis.Hash())
	db.Push(a1)
	b1 := block(1, 2, genesis.Hash()) // sibling fork, different timestamp -> different hash
	db.Push(b1)

	if db.Head().Block.Hash() != a1.Hash() {
		t.Fatalf("want first-seen depth-1 branch to remain head")
	}

	a2 := block(2, 3, a1.Hash())
	db.Push(a2)

	if db.Head().Block.Hash() != a2.Hash() {
		t.Fatalf("want head to advance to the now-longer a-branch")
	}
}

func TestCommonAncestor(t *testing.T) {
	genesis := block(0, 0, chain.Hash{})
	db := New(genesis)

	a1 := block(1, 1, genesis.Hash())
	db.Push(a1)
	a2 := block(2, 2, a1.Hash())
	db.Push(a2)
	b2 := block(2, 3, a1.Hash())
	db.Push(b2)

	anc, ok := db.CommonAncestor(a2.Hash(), b2.Hash())
	if !ok {
		t.Fatalf("want a common ancestor")
	}
	if anc.Block.Hash() != a1.Hash() {
		t.Fatalf("want common ancestor to be a1")
	}
}

func TestFetchBranchFromWalksToGenesis(t *testing.T) {
	genesis := block(0, 0, chain.Hash{})
	db := New(genesis)
	b1 := block(1, 1, genesis.Hash())
	db.Push(b1)
	b2 := block(2, 2, b1.Hash())
	db.Push(b2)

	branch := db.FetchBranchFrom(b2.Hash())
	if len(branch) != 3 {
		t.Fatalf("want 3 blocks (genesis, b1, b2), got %d", len(branch))
	}
	if branch[0].Hash() != genesis.Hash() || branch[2].Hash() != b2.Hash() {
		t.Fatalf("want branch ordered oldest-first")
	}
}

func TestPopBlockRemovesDescendantsAndRecomputesHead(t *testing.T) {
	genesis := block(0, 0, chain.Hash{})
	db := New(genesis)
	b1 := block(1, 1, genesis.Hash())
	db.Push(b1)
	b2 := block(2, 2, b1.Hash())
	db.Push(b2)

	db.PopBlock(b1.Hash())

	if _, ok := db.Fetch(b1.Hash()); ok {
		t.Fatalf("want b1 removed")
	}
	if _, ok := db.Fetch(b2.Hash()); ok {
		t.Fatalf("want b2 (descendant of b1) removed")
	}
	if db.Head().Block.Hash() != genesis.Hash() {
		t.Fatalf("want head to fall back to genesis, got height %d", db.Head().Block.Height)
	}
}

func TestPruneDiscardsBelowFloor(t *testing.T) {
	genesis := block(0, 0, chain.Hash{})
	db := New(genesis)
	db.SetMaxSize(1)

	b1 := block(1, 1, genesis.Hash())
	db.Push(b1)
	b2 := block(2, 2, b1.Hash())
	db.Push(b2)

	db.Prune()

	if _, ok := db.Fetch(genesis.Hash()); ok {
		t.Fatalf("want genesis pruned once head is 2 deep with maxSize 1")
	}
	if _, ok := db.Fetch(b1.Hash()); !ok {
		t.Fatalf("want b1 still within reorg range")
	}
	if _, ok := db.Fetch(b2.Hash()); !ok {
		t.Fatalf("want head block retained")
	}
}
