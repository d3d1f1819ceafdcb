package market

import (
	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

// MatchResult is the return code of the match primitive, spec.md §4.3.
type MatchResult int

const (
	// NeitherFilled can never legitimately occur; it signals a bug in
	// the caller (the smaller-of-two-residuals choice guarantees at
	// least one side empties).
	NeitherFilled MatchResult = 2
	MakerFilled   MatchResult = 1
	TakerFilled   MatchResult = 0
	BothFilled    MatchResult = -1
)

// Fill records one taker/maker match for the applied-operations trace
// (spec.md §6's virtual fill_order).
type Fill struct {
	TakerOrder objectdb.ID
	MakerOrder objectdb.ID
	TakerPays  state.AssetAmount
	TakerGets  state.AssetAmount
}

// isDust reports whether a residual for_sale amount is too small to
// ever fill: zero, or insufficient to buy even one unit of the quote
// asset at the order's own price (spec.md §4.3's rounding rule).
func isDust(forSale int64, price state.Price) bool {
	if forSale <= 0 {
		return true
	}
	return price.Invert().Mul(forSale) == 0
}

// matchOne fills taker against maker at maker's resting price (the
// maker's price always governs, per price-time priority), crediting
// both parties' balances and applying the market fee to whichever
// asset each party receives. marketFeeBps is the receiving asset's
// market_fee_percent.
func matchOne(cs *state.Chainstate, taker, maker *state.LimitOrder, marketFeeBps uint16) (Fill, MatchResult) {
	makerPrice := maker.SellPrice
	takerWantsAtMaker := makerPrice.Invert().Mul(taker.ForSale)

	fillBase := taker.ForSale
	if maker.ForSale < fillBase {
		fillBase = maker.ForSale
	}
	fillQuote := makerPrice.Invert().Mul(fillBase)
	if takerWantsAtMaker < maker.ForSale {
		fillQuote = takerWantsAtMaker
	}

	takerPays := fillBase
	takerGetsGross := fillQuote
	takerFee := protocol.Cut(takerGetsGross, marketFeeBps)
	takerGetsNet := takerGetsGross - takerFee

	cs.AddBalance(taker.Seller, taker.SellPrice.Base.AssetID, -takerPays)
	cs.AddBalance(maker.Seller, taker.SellPrice.Base.AssetID, takerPays)
	cs.AddBalance(maker.Seller, taker.SellPrice.Quote.AssetID, -fillQuote)
	cs.AddBalance(taker.Seller, taker.SellPrice.Quote.AssetID, takerGetsNet)
	if takerFee > 0 {
		creditMarketFee(cs, taker.SellPrice.Quote.AssetID, takerFee)
	}

	objectdb.Modify(cs.DB, cs.LimitOrders, taker, func(o *state.LimitOrder) { o.ForSale -= takerPays })
	objectdb.Modify(cs.DB, cs.LimitOrders, maker, func(o *state.LimitOrder) { o.ForSale -= fillQuote })

	takerDust := isDust(taker.ForSale, taker.SellPrice)
	makerDust := isDust(maker.ForSale, maker.SellPrice)
	if takerDust {
		objectdb.Remove(cs.DB, cs.LimitOrders, taker)
	}
	if makerDust {
		objectdb.Remove(cs.DB, cs.LimitOrders, maker)
	}

	var res MatchResult
	switch {
	case takerDust && makerDust:
		res = BothFilled
	case makerDust:
		res = MakerFilled
	case takerDust:
		res = TakerFilled
	default:
		res = NeitherFilled
	}

	return Fill{
		TakerOrder: taker.Id,
		MakerOrder: maker.Id,
		TakerPays:  state.AssetAmount{AssetID: taker.SellPrice.Base.AssetID, Amount: takerPays},
		TakerGets:  state.AssetAmount{AssetID: taker.SellPrice.Quote.AssetID, Amount: takerGetsNet},
	}, res
}

// creditMarketFee accrues a market fee into the asset's accumulated_fees.
func creditMarketFee(cs *state.Chainstate, asset objectdb.ID, amount int64) {
	a, ok := cs.Assets.Find(asset)
	if !ok {
		return
	}
	dd, ok := cs.AssetDynamicData.Find(a.DynamicDataID)
	if !ok {
		return
	}
	objectdb.Modify(cs.DB, cs.AssetDynamicData, dd, func(d *state.AssetDynamicData) {
		d.AccumulatedFees += amount
	})
}

// Match runs the continuous matching loop of spec.md §4.3 for a newly
// inserted taker order against the resting book on pair, until the
// taker is exhausted, dust, or no longer crosses the best maker.
// fillOrKill requires the taker to end fully filled or removed as dust;
// if it instead rests with a non-dust residual, the whole operation is
// rejected with a PolicyError and every fill performed so far must be
// undone by the caller's enclosing session rollback.
func Match(cs *state.Chainstate, pair Pair, taker *state.LimitOrder, marketFeeBps uint16, where chainerr.OpIndex) ([]Fill, error) {
	var fills []Fill
	for taker.ForSale > 0 {
		maker, ok := BestAsk(cs, Pair{Base: pair.Quote, Quote: pair.Base})
		if !ok {
			break
		}
		// maker sells Quote for Base; it crosses the taker (selling Base
		// for Quote) iff maker.SellPrice.Invert() >= taker.SellPrice,
		// i.e. the maker will accept at or below what the taker offers.
		if maker.SellPrice.Invert().Less(taker.SellPrice) {
			break
		}
		f, res := matchOne(cs, taker, maker, marketFeeBps)
		fills = append(fills, f)
		if res == MakerFilled || res == NeitherFilled {
			continue
		}
		break
	}
	if taker.FillOrKill && taker.ForSale > 0 && !isDust(taker.ForSale, taker.SellPrice) {
		return fills, chainerr.Policyf(where, "fill_or_kill order %s left a non-dust residual of %d", taker.Id, taker.ForSale)
	}
	return fills, nil
}
