package market

import (
	"math/big"

	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/state"
)

// MaintenancePrice returns the feed price scaled up by the
// maintenance_collateral_ratio, the threshold a call order's
// collateralization must clear to avoid margin call (spec.md §4.3
// point 2).
func MaintenancePrice(feed state.PriceFeed) state.Price {
	return state.Price{
		Base:  state.AssetAmount{AssetID: feed.SettlementPrice.Base.AssetID, Amount: feed.SettlementPrice.Base.Amount * int64(feed.MaintenanceCollateralRatio)},
		Quote: state.AssetAmount{AssetID: feed.SettlementPrice.Quote.AssetID, Amount: feed.SettlementPrice.Quote.Amount * int64(state.CollateralRatioDenom)},
	}
}

// MaxShortSqueezePrice returns feed_price * DENOM / short_squeeze_ratio,
// the worst price a margin call may execute at (spec.md §4.3 point 3).
func MaxShortSqueezePrice(feed state.PriceFeed) state.Price {
	return state.Price{
		Base:  state.AssetAmount{AssetID: feed.SettlementPrice.Base.AssetID, Amount: feed.SettlementPrice.Base.Amount * int64(state.CollateralRatioDenom)},
		Quote: state.AssetAmount{AssetID: feed.SettlementPrice.Quote.AssetID, Amount: feed.SettlementPrice.Quote.Amount * int64(feed.MaximumShortSqueezeRatio)},
	}
}

// CheckMarginCalls runs spec.md §4.3's margin-call trigger for one
// bitasset: find the least-collateralized open call order; if it is
// below the feed-implied maintenance price, attempt to cover it against
// the resting ask book for the backing asset up to the short-squeeze
// price. If the book cannot fully cover it at or above the feed price,
// trigger black-swan global settlement instead. Returns the fills
// produced and whether a black swan occurred.
func CheckMarginCalls(cs *state.Chainstate, bd *state.BitassetData, backingAsset objectdb.ID, marketFeeBps uint16, where chainerr.OpIndex) ([]Fill, bool, error) {
	if bd.HasSettlement {
		return nil, false, nil
	}
	feed := bd.CurrentFeed
	if feed.SettlementPrice.Base.Amount == 0 {
		return nil, false, nil // no current feed: frozen except cancellations
	}

	var fills []Fill
	for {
		calls := CallOrdersByCollateralization(cs, backingAsset, bd.AssetID)
		if len(calls) == 0 {
			return fills, false, nil
		}
		weakest := calls[0]
		maintPrice := MaintenancePrice(feed)
		if !weakest.Collateralization(backingAsset, bd.AssetID).Less(maintPrice) {
			return fills, false, nil
		}

		squeeze := MaxShortSqueezePrice(feed)
		covered, f, err := coverCall(cs, weakest, backingAsset, bd.AssetID, squeeze, feed, marketFeeBps)
		fills = append(fills, f...)
		if err != nil {
			return fills, false, err
		}
		if covered {
			continue
		}

		if err := triggerBlackSwan(cs, bd, weakest.Collateralization(backingAsset, bd.AssetID), where); err != nil {
			return fills, true, err
		}
		return fills, true, nil
	}
}

// coverCall matches call against the resting ask book for the backing
// asset (asks selling backing asset for the bitasset) up to ceiling,
// reports whether the call was brought back above maintenance. When
// call carries a TargetCollateralRatio, each fill is capped at the
// debt SolveTargetDebtToCover reports for that fill's match price
// instead of the order's full debt, so the order lands at its
// requested ratio rather than being closed out entirely (spec.md
// §4.3's target-collateral mode).
func coverCall(cs *state.Chainstate, call *state.CallOrder, backingAsset, bitasset objectdb.ID, ceiling state.Price, feed state.PriceFeed, marketFeeBps uint16) (bool, []Fill, error) {
	pair := Pair{Base: backingAsset, Quote: bitasset}
	var fills []Fill
	for {
		ask, ok := BestAsk(cs, pair)
		if !ok || ask.SellPrice.Greater(ceiling) {
			break
		}
		fillDebt := ask.SellPrice.Invert().Mul(ask.ForSale)
		if fillDebt > call.Debt {
			fillDebt = call.Debt
		}
		if call.TargetCollateralRatio != 0 {
			tcr := call.TargetCollateralRatio
			if feed.MaintenanceCollateralRatio > tcr {
				tcr = feed.MaintenanceCollateralRatio
			}
			toCover := SolveTargetDebtToCover(call.Debt, call.Collateral, tcr,
				feed.SettlementPrice.Base.Amount, feed.SettlementPrice.Quote.Amount,
				ask.SellPrice.Base.Amount, ask.SellPrice.Quote.Amount)
			if toCover <= 0 {
				return true, fills, nil
			}
			if toCover < fillDebt {
				fillDebt = toCover
			}
		}
		fillCollateral := ask.SellPrice.Mul(fillDebt)
		if fillCollateral > call.Collateral {
			fillCollateral = call.Collateral
		}
		if fillDebt <= 0 || fillCollateral <= 0 {
			break
		}

		cs.AddBalance(ask.Seller, backingAsset, fillCollateral)
		objectdb.Modify(cs.DB, cs.LimitOrders, ask, func(o *state.LimitOrder) { o.ForSale -= fillDebt })
		if isDust(ask.ForSale, ask.SellPrice) {
			objectdb.Remove(cs.DB, cs.LimitOrders, ask)
		}
		objectdb.Modify(cs.DB, cs.CallOrders, call, func(c *state.CallOrder) {
			c.Collateral -= fillCollateral
			c.Debt -= fillDebt
		})
		fills = append(fills, Fill{
			TakerOrder: call.Id,
			MakerOrder: ask.Id,
			TakerPays:  state.AssetAmount{AssetID: backingAsset, Amount: fillCollateral},
			TakerGets:  state.AssetAmount{AssetID: bitasset, Amount: fillDebt},
		})

		if call.Debt == 0 {
			objectdb.Remove(cs.DB, cs.CallOrders, call)
			return true, fills, nil
		}
	}
	return false, fills, nil
}

// triggerBlackSwan performs spec.md §4.2's global-settle postconditions:
// marks the bitasset settled at settlePrice and closes every open call
// order into the settlement fund.
func triggerBlackSwan(cs *state.Chainstate, bd *state.BitassetData, settlePrice state.Price, where chainerr.OpIndex) error {
	var totalCollateral int64
	for _, c := range cs.CallOrders.All() {
		if c.CallPrice.Quote.AssetID != bd.AssetID {
			continue
		}
		totalCollateral += c.Collateral
		objectdb.Remove(cs.DB, cs.CallOrders, c)
	}
	objectdb.Modify(cs.DB, cs.BitassetData, bd, func(b *state.BitassetData) {
		b.HasSettlement = true
		b.SettlementPrice = settlePrice
		b.SettlementFund = totalCollateral
	})
	if totalCollateral < 0 {
		return chainerr.Invariantf("black swan on %s produced negative settlement fund", bd.AssetID)
	}
	return nil
}

// SolveTargetDebtToCover implements spec.md §4.3's target-collateral-mode
// formula in 256-bit big.Int arithmetic: the amount of debt to buy back
// so the order's collateralization rises to max(targetCR, MCR). fp and
// mp are feed price and match price as (numerator, denominator) pairs in
// CollateralRatioDenom units; debt/collateral are the order's current
// state. Returns the debt amount to cover, truncated down.
func SolveTargetDebtToCover(debt, collateral int64, targetCR uint16, fpCollNum, fpDebtNum, mpCollNum, mpDebtNum int64) int64 {
	tCR := big.NewInt(int64(targetCR))
	d := big.NewInt(debt)
	col := big.NewInt(collateral)
	fpColl := big.NewInt(fpCollNum)
	fpDebt := big.NewInt(fpDebtNum)
	mpColl := big.NewInt(mpCollNum)
	mpDebt := big.NewInt(mpDebtNum)
	denom := big.NewInt(state.CollateralRatioDenom)

	one := big.NewInt(1)
	numerator := new(big.Int).Mul(new(big.Int).Add(d, one), tCR)
	numerator.Mul(numerator, fpColl)
	numerator.Mul(numerator, mpDebt)

	sub := new(big.Int).Mul(col, fpDebt)
	sub.Mul(sub, denom)
	sub.Mul(sub, mpDebt)
	numerator.Sub(numerator, sub)

	denomTerm := new(big.Int).Mul(tCR, mpDebt)
	denomTerm.Mul(denomTerm, fpColl)
	sub2 := new(big.Int).Mul(fpDebt, denom)
	sub2.Mul(sub2, mpColl)
	denomTerm.Sub(denomTerm, sub2)

	if denomTerm.Sign() <= 0 {
		return debt // degenerate: cover the whole order
	}
	result := new(big.Int).Quo(numerator, denomTerm)
	if result.Sign() < 0 {
		return 0
	}
	if result.Cmp(d) > 0 {
		return debt
	}
	return result.Int64()
}
