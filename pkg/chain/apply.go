package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/evaluator"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

// RecentBlock is the minimal TaPoS reference the applier needs: a
// recent block's number and the low bytes of its id, used to verify
// ref_block_num/ref_block_prefix (spec.md §4.4 point 2).
type RecentBlock struct {
	Num    uint16
	Prefix uint32
}

// Engine owns the chain state and the parameters transaction/block
// application reads. It does not own block production or networking
// (those are the node's cmd/ wiring, per SPEC_FULL.md's package split).
type Engine struct {
	State             *state.Chainstate
	Schedule          *protocol.Schedule
	MaxTimeUntilExpire int64
	MaintenanceInterval int64
	nextMaintenance    int64
	RecoverSigner      func(digest []byte, sig [65]byte) (common.Address, error)
	TaPoS              func(num uint16) (RecentBlock, bool)

	// ActiveWitnesses is the witness roster installed by the last
	// maintenance reshuffle, used for slot scheduling and as the
	// authorized feed-producer set (spec.md §4.4 point 4).
	ActiveWitnesses []*state.Witness

	// undo holds the session opened for each applied block still within
	// reorg range, keyed by hash; undoOrder tracks application order so
	// PopTo can resolve objectdb.Session's topmost-only undo contract.
	undo      map[Hash]*blockUndo
	undoOrder []Hash
}

// blockUndo bundles a block's undo session with the Engine-level
// scheduling fields an objectdb.Session can't track on its own
// (nextMaintenance crosses a maintenance boundary independently of any
// entity mutation; ActiveWitnesses is replaced wholesale, not modified
// in place), so PopTo restores both together.
type blockUndo struct {
	session             *objectdb.Session
	prevNextMaintenance int64
	prevActiveWitnesses []*state.Witness
}

// ApplyTransaction implements spec.md §4.4's transaction application:
// expiration and TaPoS checks, authority satisfaction, then each
// operation in an inner undo session that rolls back as a unit on
// failure. Returns the virtual operations produced, in order.
func (e *Engine) ApplyTransaction(tx *protocol.Transaction, nowUnix int64, txIndex int) ([]protocol.Operation, error) {
	where := chainerr.OpIndex{TxIndex: txIndex}

	if tx.Expiration <= nowUnix {
		return nil, chainerr.Policyf(where, "transaction expired at %d (now %d)", tx.Expiration, nowUnix)
	}
	if tx.Expiration > nowUnix+e.MaxTimeUntilExpire {
		return nil, chainerr.Policyf(where, "expiration %d exceeds max_time_until_expiration", tx.Expiration)
	}
	if e.TaPoS != nil {
		ref, ok := e.TaPoS(tx.RefBlockNum)
		if !ok || ref.Prefix != tx.RefBlockPrefix {
			return nil, chainerr.Preconditionf(where, "TaPoS reference does not match chain history")
		}
	}
	if err := tx.Validate(); err != nil {
		return nil, chainerr.Validationf(where, "%s", err)
	}

	signers, err := tx.RecoverSigners(tx.SigningDigest(), e.RecoverSigner)
	if err != nil {
		return nil, chainerr.Preconditionf(where, "%s", err)
	}
	if err := e.checkAuthorities(tx, signers, where); err != nil {
		return nil, err
	}

	session := e.State.StartUndo()
	var virtuals []protocol.Operation
	for i, op := range tx.Operations {
		opWhere := chainerr.OpIndex{TxIndex: txIndex, OpIndex: i}
		vs, err := evaluator.Apply(e.State, op, evaluator.Context{Schedule: e.Schedule, NowUnix: nowUnix, Where: opWhere})
		if err != nil {
			session.Undo()
			return nil, err
		}
		virtuals = append(virtuals, vs...)
	}
	session.Commit()
	return virtuals, nil
}

// checkAuthorities verifies the signer set covers every operation's fee
// payer's active authority, recursively, up to MaxSigCheckDepth (spec.md
// §4.4 point 3). Custom-authority predicates are a named Non-goal.
func (e *Engine) checkAuthorities(tx *protocol.Transaction, signers map[common.Address]struct{}, where chainerr.OpIndex) error {
	for _, op := range tx.Operations {
		payer := op.FeePayer()
		if payer.Zero() {
			continue
		}
		acc, ok := e.State.Accounts.Find(payer)
		if !ok {
			return chainerr.Preconditionf(where, "unknown fee payer %s", payer)
		}
		if !acc.Active.Satisfied(signers, e.State) {
			return chainerr.Preconditionf(where, "signature set does not satisfy %s's active authority", payer)
		}
	}
	return nil
}

// ApplyBlock implements spec.md §4.4 point 4-5: an outer undo session
// wraps every transaction so the block is atomic; on any transaction's
// failure the entire block rolls back. If the block crosses a
// maintenance boundary, maintenance runs inside the same outer session.
//
// The outer session is deliberately left open rather than committed: it
// is kept, nested on top of whatever came before, so a later fork-choice
// reversal can undo it via PopTo without replaying from genesis (spec.md
// §4.5's Integration paragraph). Head/PopTo/Replay below manage this
// window; a node that never reorgs simply never calls them.
func (e *Engine) ApplyBlock(b *Block) ([]protocol.Operation, error) {
	prevNextMaintenance := e.nextMaintenance
	prevActiveWitnesses := e.ActiveWitnesses

	session := e.State.StartUndo()
	var allVirtuals []protocol.Operation
	for i := range b.Transactions {
		vs, err := e.ApplyTransaction(&b.Transactions[i], b.Timestamp, i)
		if err != nil {
			session.Undo()
			return nil, err
		}
		allVirtuals = append(allVirtuals, vs...)
	}

	if e.nextMaintenance != 0 && b.Timestamp >= e.nextMaintenance {
		mv, err := e.RunMaintenance(b.Timestamp)
		if err != nil {
			session.Undo()
			return nil, err
		}
		allVirtuals = append(allVirtuals, mv...)
		e.nextMaintenance = b.Timestamp + e.MaintenanceInterval
	} else if e.nextMaintenance == 0 {
		e.nextMaintenance = b.Timestamp + e.MaintenanceInterval
	}

	h := b.Hash()
	if e.undo == nil {
		e.undo = make(map[Hash]*blockUndo)
	}
	e.undo[h] = &blockUndo{
		session:             session,
		prevNextMaintenance: prevNextMaintenance,
		prevActiveWitnesses: prevActiveWitnesses,
	}
	e.undoOrder = append(e.undoOrder, h)
	return allVirtuals, nil
}

// Head returns the hash of the most recently applied block still held
// open for reorg, or ok=false if nothing has been applied through this
// Engine yet (the live state is still exactly genesis).
func (e *Engine) Head() (Hash, bool) {
	if len(e.undoOrder) == 0 {
		return Hash{}, false
	}
	return e.undoOrder[len(e.undoOrder)-1], true
}

// PopTo undoes every applied block back to, but not including, ancestor,
// newest first, matching objectdb.Session's topmost-only resolution
// contract. If ancestor is never found (it predates anything this Engine
// has tracked, i.e. genesis), every open block is undone. The popped
// hashes are returned newest-first so a failed reorg can restore them.
func (e *Engine) PopTo(ancestor Hash) []Hash {
	var popped []Hash
	for {
		top, ok := e.Head()
		if !ok || top == ancestor {
			return popped
		}
		u := e.undo[top]
		u.session.Undo()
		e.nextMaintenance = u.prevNextMaintenance
		e.ActiveWitnesses = u.prevActiveWitnesses
		delete(e.undo, top)
		e.undoOrder = e.undoOrder[:len(e.undoOrder)-1]
		popped = append(popped, top)
	}
}

// Replay applies blocks in order (oldest first). If any block fails to
// apply, every block replayed so far in this call is popped back off
// before returning, so the caller's prior PopTo can be undone by
// replaying the original branch it returned (spec.md §4.5's "replay
// failures re-pop and restore the original head").
func (e *Engine) Replay(blocks []*Block) error {
	ancestor, _ := e.Head()
	for _, b := range blocks {
		if _, err := e.ApplyBlock(b); err != nil {
			e.PopTo(ancestor)
			return fmt.Errorf("replay block height %d: %w", b.Height, err)
		}
	}
	return nil
}
