package chain

import (
	"sync"

	"github.com/hyperlicked/chaincore/pkg/protocol"
)

// txBucket classifies a pending transaction by its leading operation,
// grounded on the teacher's three-queue mempool ordering (pkg/app/core/
// mempool/mempool.go): cancels drain ahead of new orders so resting
// liquidity clears before fresh liquidity is added within a block.
type txBucket int

const (
	bucketNonOrder txBucket = iota
	bucketCancel
	bucketOrder
)

// classify inspects a transaction's first operation; a transaction
// mixing operation kinds is classified by its first op, matching the
// teacher's single-type-per-tx assumption.
func classify(tx *protocol.Transaction) txBucket {
	if len(tx.Operations) == 0 {
		return bucketNonOrder
	}
	switch tx.Operations[0].Tag() {
	case protocol.TagLimitOrderCancel:
		return bucketCancel
	case protocol.TagLimitOrderCreate, protocol.TagCallOrderUpdate:
		return bucketOrder
	default:
		return bucketNonOrder
	}
}

// TxPool maintains three FIFO queues, one per transaction bucket. Within
// each bucket, transactions are admitted in arrival order; selection
// for a block pulls non-order, then cancel, then order, matching the
// teacher's pull ordering (mempool.go's SelectForProposal).
type TxPool struct {
	mu       sync.Mutex
	nonOrder []*protocol.Transaction
	cancel   []*protocol.Transaction
	order    []*protocol.Transaction
}

func NewTxPool() *TxPool {
	return &TxPool{}
}

// Push validates and enqueues a transaction. It does not check
// signatures or chain state — that happens at ApplyTransaction time —
// only that the transaction is structurally well-formed.
func (p *TxPool) Push(tx *protocol.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch classify(tx) {
	case bucketCancel:
		p.cancel = append(p.cancel, tx)
	case bucketOrder:
		p.order = append(p.order, tx)
	default:
		p.nonOrder = append(p.nonOrder, tx)
	}
	return nil
}

// SelectForBlock drains up to maxCount transactions in bucket order,
// removing them from the pool. A witness calls this when producing its
// scheduled block; transactions that fail to apply are simply dropped
// by the caller rather than requeued, matching the teacher's
// prototype semantics.
func (p *TxPool) SelectForBlock(maxCount int) []*protocol.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*protocol.Transaction
	pull := func(q *[]*protocol.Transaction) {
		for len(*q) > 0 {
			if maxCount > 0 && len(out) >= maxCount {
				return
			}
			out = append(out, (*q)[0])
			*q = (*q)[1:]
		}
	}
	pull(&p.nonOrder)
	pull(&p.cancel)
	pull(&p.order)
	return out
}

// Len returns the total number of pending transactions across all
// buckets.
func (p *TxPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.nonOrder) + len(p.cancel) + len(p.order)
}
