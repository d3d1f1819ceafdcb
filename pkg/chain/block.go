// Package chain implements spec.md §4.4's block production and
// application: witness slot scheduling, transaction/block application
// atop the Object DB's undo sessions, and the maintenance interval.
// Grounded on the teacher's consensus.Block/Safety (pkg/consensus/
// types.go, safety.go), generalized from a HotStuff view/QC block to a
// DPoS witness-signed block and from a vote-quorum commit rule to a
// round-robin schedule check.
package chain

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
)

// Hash is a block identifier. Computed with Keccak-256 (go-ethereum's
// crypto package), matching the teacher's go-ethereum-backed signer
// stack rather than introducing a second hash primitive for blocks.
type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("%x", h[:]) }

// Block is a witness-produced block: a header committing to the
// previous block, the witness slot, and an ordered transaction list.
type Block struct {
	Height       uint64
	Timestamp    int64 // unix seconds, floor-aligned to the block interval
	Witness      objectdb.ID
	Previous     Hash
	Transactions []protocol.Transaction
	Signature    []byte // witness's BLS signature over Hash(), see witnesssig.go
}

// Hash commits to everything but the signature itself.
func (b *Block) Hash() Hash {
	buf := make([]byte, 0, 64+len(b.Transactions)*32)
	var h8 [8]byte
	binary.BigEndian.PutUint64(h8[:], b.Height)
	buf = append(buf, h8[:]...)
	binary.BigEndian.PutUint64(h8[:], uint64(b.Timestamp))
	buf = append(buf, h8[:]...)
	buf = append(buf, byte(b.Witness.Space), byte(b.Witness.Type))
	binary.BigEndian.PutUint64(h8[:], b.Witness.Instance)
	buf = append(buf, h8[:]...)
	buf = append(buf, b.Previous[:]...)
	for _, tx := range b.Transactions {
		buf = append(buf, tx.SigningDigest()...)
	}
	return Hash(crypto.Keccak256Hash(buf))
}
