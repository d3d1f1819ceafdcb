// Package state defines the chain core's entity catalog (spec.md §3) and
// wires it into an objectdb.Database: accounts, assets, bitasset data,
// limit/call/force-settlement orders and the witness roster.
package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
)

// MaxSupply bounds every asset's current_supply (spec.md §3). Concrete
// deployments may lower it per-asset via AssetOptions.MaxSupply, but no
// asset may ever exceed this absolute ceiling.
const MaxSupply int64 = 1_000_000_000_000_000

// Amount is a fixed-point money value in an asset's minimal units.
type Amount int64

// AssetAmount pairs an amount with the asset it is denominated in.
type AssetAmount struct {
	AssetID objectdb.ID
	Amount  int64
}

func (a AssetAmount) Encode() []byte {
	b := make([]byte, 0, 8+8+1)
	b = appendID(b, a.AssetID)
	b = binary.BigEndian.AppendUint64(b, uint64(a.Amount))
	return b
}

// Price is the exact rational base.Amount / quote.Amount of two distinct
// asset ids, per spec.md §3. Comparisons use 128-bit cross-multiplication
// so equality/ordering never depend on fraction simplification.
type Price struct {
	Base  AssetAmount
	Quote AssetAmount
}

func (p Price) Encode() []byte {
	b := p.Base.Encode()
	return append(b, p.Quote.Encode()...)
}

// Valid checks the structural invariants spec.md §3 requires of any
// order price: both legs positive, distinct assets.
func (p Price) Valid() error {
	if p.Base.Amount <= 0 || p.Quote.Amount <= 0 {
		return fmt.Errorf("price: amounts must be positive (base=%d quote=%d)", p.Base.Amount, p.Quote.Amount)
	}
	if p.Base.AssetID == p.Quote.AssetID {
		return fmt.Errorf("price: base and quote asset must differ")
	}
	return nil
}

// crossMul computes p.Base.Amount*q.Quote.Amount as a 256-bit value,
// using holiman/uint256 for the 128-bit-class arithmetic spec.md's price
// comparator requires (amounts are signed 64-bit but always positive on
// a valid price, so the unsigned fast path applies; callers must not feed
// negative amounts).
func crossMul(a, b int64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(uint64(a)), uint256.NewInt(uint64(b)))
}

// Compare returns -1, 0, or 1 as p is less than, equal to, or greater
// than q, expressed as base/quote ratios. p and q need not share assets;
// callers are responsible for ensuring the comparison is meaningful
// (same trading pair, possibly inverted).
func (p Price) Compare(q Price) int {
	left := crossMul(p.Base.Amount, q.Quote.Amount)
	right := crossMul(q.Base.Amount, p.Quote.Amount)
	return left.Cmp(right)
}

func (p Price) Less(q Price) bool    { return p.Compare(q) < 0 }
func (p Price) Equal(q Price) bool   { return p.Compare(q) == 0 }
func (p Price) Greater(q Price) bool { return p.Compare(q) > 0 }

// Invert returns the reciprocal price (quote/base).
func (p Price) Invert() Price { return Price{Base: p.Quote, Quote: p.Base} }

// Mul multiplies an amount of p.Quote's asset by p, truncating toward
// zero, per spec.md §4.3's rounding rule ("all multiplicative amount
// conversions use 128-bit intermediates and truncate toward zero").
func (p Price) Mul(quoteAmount int64) int64 {
	num := crossMul(quoteAmount, p.Base.Amount)
	den := uint256.NewInt(uint64(p.Quote.Amount))
	q := new(uint256.Int).Div(num, den)
	return int64(q.Uint64())
}

// MulBig is Mul's 256-bit-safe form for the target-collateral-ratio
// solve in spec.md §4.3, which needs headroom beyond 128 bits.
func MulBig(x int64, num, den *big.Int) *big.Int {
	t := new(big.Int).Mul(big.NewInt(x), num)
	return new(big.Int).Quo(t, den)
}

func appendID(b []byte, id objectdb.ID) []byte {
	b = append(b, byte(id.Space), byte(id.Type))
	return binary.BigEndian.AppendUint64(b, id.Instance)
}
