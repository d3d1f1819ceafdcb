package p2p

import (
	"github.com/hyperlicked/chaincore/pkg/chain"
	"github.com/hyperlicked/chaincore/pkg/protocol"
)

// NodeID identifies a peer for logging and bootstrap purposes. Unlike
// the teacher's consensus.NodeID (used to address a specific HotStuff
// leader for unicast votes), this core never addresses a peer
// individually — blocks and transactions are always broadcast — so
// NodeID here is descriptive only.
type NodeID string

// Handlers are the callbacks a node registers to receive gossiped
// chain data. Grounded on the teacher's consensus.Handlers
// (pkg/consensus/pacemaker.go: OnPropose/OnPrepare), generalized from
// HotStuff's propose/prepare phases to this core's two gossip topics:
// a witness's newly produced block, and any peer's pending
// transaction.
type Handlers struct {
	OnBlock       func(b *chain.Block)
	OnTransaction func(tx *protocol.Transaction)
}

// Network is the gossip surface a chain node depends on. Grounded on
// the teacher's consensus.Network interface (pkg/consensus/
// pacemaker.go), narrowed from propose/prepare/vote-collection to the
// two broadcasts a DPoS node needs: blocks carry their own witness
// signature and pkg/forkdb's longest-chain rule chooses between forks,
// so there is no quorum certificate to collect votes for.
type Network interface {
	SetHandlers(h Handlers)
	BroadcastBlock(b *chain.Block) error
	BroadcastTransaction(tx *protocol.Transaction) error
}
