package chain

import (
	"github.com/hyperlicked/chaincore/pkg/crypto"
)

// WitnessSigner produces a block signature over a block's hash. The BLS
// scheme is reused from the teacher's crypto.BLSSigner (pkg/crypto/bls.go)
// rather than go-ethereum's ECDSA recovery used for transaction authorities:
// witness block signatures benefit from BLS's native aggregation (a future
// multi-signer checkpoint can fold several witnesses' signatures into one
// via crypto.Aggregate), whereas per-operation authority checks need
// recoverable ECDSA keys to resolve a signer back to an account address.
type WitnessSigner struct {
	signer *crypto.BLSSigner
}

// NewWitnessSigner derives a BLS signing key from seed, deterministic so a
// devnet can reproduce the same witness identity across restarts from a
// fixed seed.
func NewWitnessSigner(seed []byte) *WitnessSigner {
	return &WitnessSigner{signer: crypto.NewBLSSignerFromSeed(seed)}
}

// Sign returns a BLS signature over b's hash, assignable directly to
// Block.Signature.
func (s *WitnessSigner) Sign(b *Block) []byte {
	h := b.Hash()
	return s.signer.Sign(h[:])
}

func (s *WitnessSigner) Pubkey() *crypto.BLSPubKey { return s.signer.Pubkey() }

// VerifyWitnessSignature checks sig against b's hash under pk.
func VerifyWitnessSignature(pk *crypto.BLSPubKey, b *Block, sig []byte) bool {
	h := b.Hash()
	return crypto.Verify(pk, sig, h[:])
}

// AggregateWitnessSignatures folds multiple witnesses' signatures over the
// same block hash into one, for a maintenance-boundary checkpoint that
// wants a compact multi-witness attestation rather than N separate ones.
func AggregateWitnessSignatures(sigs [][]byte) []byte {
	return crypto.Aggregate(sigs)
}
