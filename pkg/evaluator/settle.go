package evaluator

import (
	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func init() {
	Register(protocol.TagAssetSettle, func(op protocol.Operation) (Evaluator, error) {
		return &assetSettleEval{op: op.(protocol.AssetSettle)}, nil
	})
	Register(protocol.TagAssetGlobalSettle, func(op protocol.Operation) (Evaluator, error) {
		return &assetGlobalSettleEval{op: op.(protocol.AssetGlobalSettle)}, nil
	})
}

type assetSettleEval struct {
	op protocol.AssetSettle
}

func (e *assetSettleEval) DoEvaluate(cs *state.Chainstate, ctx Context) error {
	if _, ok := cs.Accounts.Find(e.op.Account); !ok {
		return chainerr.Preconditionf(ctx.Where, "unknown account %s", e.op.Account)
	}
	a, ok := cs.Assets.Find(e.op.Amount.AssetID)
	if !ok || !a.IsMarketIssued {
		return chainerr.Preconditionf(ctx.Where, "%s is not a market-issued asset", e.op.Amount.AssetID)
	}
	bd, ok := cs.BitassetData.Find(a.BitassetDataID)
	if ok && bd.HasSettlement {
		return chainerr.Preconditionf(ctx.Where, "%s is already in global settlement, use the settlement fund directly", e.op.Amount.AssetID)
	}
	if cs.Balance(e.op.Account, e.op.Amount.AssetID) < e.op.Amount.Amount {
		return chainerr.Preconditionf(ctx.Where, "insufficient bitasset balance to settle")
	}
	return nil
}

func (e *assetSettleEval) DoApply(cs *state.Chainstate, ctx Context) ([]protocol.Operation, error) {
	if err := CollectFee(cs, e.op.Account, e.op.Fee, protocol.TagAssetSettle, ctx, ctx.Where); err != nil {
		return nil, err
	}
	a, _ := cs.Assets.Find(e.op.Amount.AssetID)
	bd, _ := cs.BitassetData.Find(a.BitassetDataID)

	cs.AddBalance(e.op.Account, e.op.Amount.AssetID, -e.op.Amount.Amount)
	_, err := objectdb.Create(cs.DB, cs.ForceSettlements, func(f *state.ForceSettlementOrder) {
		f.Owner = e.op.Account
		f.Balance = e.op.Amount
		f.SettlementDate = ctx.NowUnix + int64(bd.Options.ForceSettlementDelaySec)
	})
	return nil, err
}

type assetGlobalSettleEval struct {
	op protocol.AssetGlobalSettle
}

func (e *assetGlobalSettleEval) DoEvaluate(cs *state.Chainstate, ctx Context) error {
	a, ok := cs.Assets.Find(e.op.Asset)
	if !ok || !a.IsMarketIssued {
		return chainerr.Preconditionf(ctx.Where, "%s is not a market-issued asset", e.op.Asset)
	}
	if a.Issuer != e.op.Issuer {
		return chainerr.Preconditionf(ctx.Where, "only the issuer may force global settlement of %s", e.op.Asset)
	}
	bd, ok := cs.BitassetData.Find(a.BitassetDataID)
	if ok && bd.HasSettlement {
		return chainerr.Preconditionf(ctx.Where, "%s is already settled", e.op.Asset)
	}
	return nil
}

func (e *assetGlobalSettleEval) DoApply(cs *state.Chainstate, ctx Context) ([]protocol.Operation, error) {
	if err := CollectFee(cs, e.op.Issuer, e.op.Fee, protocol.TagAssetGlobalSettle, ctx, ctx.Where); err != nil {
		return nil, err
	}
	a, _ := cs.Assets.Find(e.op.Asset)
	bd, ok := cs.BitassetData.Find(a.BitassetDataID)
	if !ok {
		return nil, chainerr.Invariantf("market-issued asset %s missing bitasset data", e.op.Asset)
	}

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
		b.SettlementPrice = e.op.SettlementPrice
		b.SettlementFund = totalCollateral
	})
	return nil, nil
}
