package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Transaction is spec.md §6's wire transaction: a TaPoS reference, an
// expiration, an ordered list of operations, and compact-signature
// recovery data. Grounded on the teacher's SignedTransaction
// (pkg/app/core/transaction/types.go), generalized from a one-of-two
// order/cancel payload to an arbitrary operation list and from a single
// hex signature to the multi-sig recoverable-signature list spec.md's
// authority graph requires.
type Transaction struct {
	RefBlockNum    uint16
	RefBlockPrefix uint32
	Expiration     int64 // unix seconds
	Operations     []Operation
	Signatures     [][65]byte // compact recoverable ECDSA signatures
}

// Validate checks every operation's pure structural invariants and
// rejects virtual operations and empty transactions outright (spec.md
// §6: "Virtual operations ... reject them at transaction-parse time").
func (tx *Transaction) Validate() error {
	if len(tx.Operations) == 0 {
		return fmt.Errorf("transaction: no operations")
	}
	for i, op := range tx.Operations {
		if op.IsVirtual() {
			return fmt.Errorf("transaction: operation %d is virtual, not valid on the wire", i)
		}
		if err := op.Validate(); err != nil {
			return fmt.Errorf("transaction: operation %d: %w", i, err)
		}
	}
	return nil
}

// SigningDigest returns the byte sequence signatures commit to: the
// TaPoS fields, expiration, and each operation's tag plus a structural
// encoding, concatenated. The actual hash (Keccak-256 in the teacher's
// go-ethereum-backed signer) is applied by the caller, keeping this
// package free of a crypto dependency on the hash choice itself.
func (tx *Transaction) SigningDigest() []byte {
	b := make([]byte, 0, 16+32*len(tx.Operations))
	b = binary.BigEndian.AppendUint16(b, tx.RefBlockNum)
	b = binary.BigEndian.AppendUint32(b, tx.RefBlockPrefix)
	b = binary.BigEndian.AppendUint64(b, uint64(tx.Expiration))
	for _, op := range tx.Operations {
		b = append(b, byte(op.Tag()))
	}
	return b
}

// RecoverSigners recovers the signing address of every compact
// signature against digest, using recoverFn (the teacher's
// crypto.Signer-equivalent ECDSA recovery, injected to keep this
// package independent of a concrete signature-recovery implementation).
func (tx *Transaction) RecoverSigners(digest []byte, recoverFn func(digest []byte, sig [65]byte) (common.Address, error)) (map[common.Address]struct{}, error) {
	out := make(map[common.Address]struct{}, len(tx.Signatures))
	for i, sig := range tx.Signatures {
		addr, err := recoverFn(digest, sig)
		if err != nil {
			return nil, fmt.Errorf("transaction: signature %d: %w", i, err)
		}
		out[addr] = struct{}{}
	}
	return out, nil
}
