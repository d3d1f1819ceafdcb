package evaluator

import (
	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/market"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func init() {
	Register(protocol.TagCallOrderUpdate, func(op protocol.Operation) (Evaluator, error) {
		return &callOrderUpdateEval{op: op.(protocol.CallOrderUpdate)}, nil
	})
}

type callOrderUpdateEval struct {
	op       protocol.CallOrderUpdate
	bitasset *state.Asset
	bd       *state.BitassetData
}

func (e *callOrderUpdateEval) DoEvaluate(cs *state.Chainstate, ctx Context) error {
	if _, ok := cs.Accounts.Find(e.op.FundingAccount); !ok {
		return chainerr.Preconditionf(ctx.Where, "unknown account %s", e.op.FundingAccount)
	}
	debtAsset := e.op.DeltaDebt.AssetID
	a, ok := cs.Assets.Find(debtAsset)
	if !ok || !a.IsMarketIssued {
		return chainerr.Preconditionf(ctx.Where, "%s is not a market-issued asset", debtAsset)
	}
	bd, ok := cs.BitassetData.Find(a.BitassetDataID)
	if !ok {
		return chainerr.Invariantf("market-issued asset %s missing bitasset data", debtAsset)
	}
	if bd.HasSettlement {
		return chainerr.Preconditionf(ctx.Where, "%s is in global settlement", debtAsset)
	}
	e.bitasset, e.bd = a, bd
	return nil
}

func (e *callOrderUpdateEval) DoApply(cs *state.Chainstate, ctx Context) ([]protocol.Operation, error) {
	if err := CollectFee(cs, e.op.FundingAccount, e.op.Fee, protocol.TagCallOrderUpdate, ctx, ctx.Where); err != nil {
		return nil, err
	}

	ids := cs.CallsByBorrower.Lookup(e.op.FundingAccount)
	var call *state.CallOrder
	for _, id := range ids {
		c, _ := cs.CallOrders.Find(id)
		if c.CallPrice.Quote.AssetID == e.bd.AssetID {
			call = c
			break
		}
	}

	collateralAsset := e.op.DeltaCollateral.AssetID
	if collateralAsset.Zero() {
		collateralAsset = e.bd.ShortBackingAssetID
	}

	if call == nil {
		if e.op.DeltaCollateral.Amount <= 0 || e.op.DeltaDebt.Amount <= 0 {
			return nil, chainerr.Preconditionf(ctx.Where, "no existing call order and delta does not open one")
		}
		cs.AddBalance(e.op.FundingAccount, collateralAsset, -e.op.DeltaCollateral.Amount)
		cs.AddBalance(e.op.FundingAccount, e.bd.AssetID, e.op.DeltaDebt.Amount)
		var tcr uint16
		if e.op.TargetCollateralRatio != nil {
			tcr = *e.op.TargetCollateralRatio
		}
		newCall, err := objectdb.Create(cs.DB, cs.CallOrders, func(c *state.CallOrder) {
			c.Borrower = e.op.FundingAccount
			c.Collateral = e.op.DeltaCollateral.Amount
			c.Debt = e.op.DeltaDebt.Amount
			c.TargetCollateralRatio = tcr
			c.CallPrice = e.callPriceFor(e.op.DeltaCollateral.Amount, e.op.DeltaDebt.Amount, collateralAsset)
		})
		if err != nil {
			return nil, err
		}
		call = newCall
	} else {
		cs.AddBalance(e.op.FundingAccount, collateralAsset, -e.op.DeltaCollateral.Amount)
		cs.AddBalance(e.op.FundingAccount, e.bd.AssetID, e.op.DeltaDebt.Amount)
		objectdb.Modify(cs.DB, cs.CallOrders, call, func(c *state.CallOrder) {
			c.Collateral += e.op.DeltaCollateral.Amount
			c.Debt += e.op.DeltaDebt.Amount
			if e.op.TargetCollateralRatio != nil {
				c.TargetCollateralRatio = *e.op.TargetCollateralRatio
			}
			c.CallPrice = e.callPriceFor(c.Collateral, c.Debt, collateralAsset)
		})
	}

	if call.Debt == 0 {
		if call.Collateral != 0 {
			return nil, chainerr.Invariantf("call order %s has zero debt but nonzero collateral", call.Id)
		}
		objectdb.Remove(cs.DB, cs.CallOrders, call)
		return nil, nil
	}
	if call.Collateral <= 0 || call.Debt < 0 {
		return nil, chainerr.Preconditionf(ctx.Where, "call order update produced invalid collateral/debt")
	}

	maint := market.MaintenancePrice(e.bd.CurrentFeed)
	if call.CallPrice.Less(maint) {
		return nil, chainerr.Policyf(ctx.Where, "call price weaker than feed-implied maintenance price")
	}

	_, blackSwan, err := market.CheckMarginCalls(cs, e.bd, e.bd.ShortBackingAssetID, e.bitasset.Options.MarketFeePercent, ctx.Where)
	if err != nil {
		return nil, err
	}
	if blackSwan {
		return nil, nil
	}
	return nil, nil
}

// callPriceFor resolves the call order's call_price: the operation's own
// CallPrice when the caller specified one, otherwise a default scaled by
// the bitasset's current maintenance_collateral_ratio so an order opened
// or adjusted without an explicit call price still sits above the
// feed-implied maintenance floor.
func (e *callOrderUpdateEval) callPriceFor(collateral, debt int64, collateralAsset objectdb.ID) state.Price {
	if e.op.CallPrice.Base.Amount != 0 || e.op.CallPrice.Quote.Amount != 0 {
		return e.op.CallPrice
	}
	return callPrice(collateral, debt, e.bd.CurrentFeed.MaintenanceCollateralRatio, collateralAsset, e.bd.AssetID)
}

// callPrice derives the implied call_price from collateral/debt scaled
// by the bitasset's maintenance_collateral_ratio, per spec.md §4.2's
// call-order-update postcondition.
func callPrice(collateral, debt int64, mcr uint16, collateralAsset, debtAsset objectdb.ID) state.Price {
	return state.Price{
		Base:  state.AssetAmount{AssetID: collateralAsset, Amount: collateral * int64(mcr)},
		Quote: state.AssetAmount{AssetID: debtAsset, Amount: debt * int64(state.CollateralRatioDenom)},
	}
}
