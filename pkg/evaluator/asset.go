package evaluator

import (
	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func init() {
	Register(protocol.TagAssetCreate, func(op protocol.Operation) (Evaluator, error) {
		return &assetCreateEval{op: op.(protocol.AssetCreate)}, nil
	})
	Register(protocol.TagAssetUpdate, func(op protocol.Operation) (Evaluator, error) {
		return &assetUpdateEval{op: op.(protocol.AssetUpdate)}, nil
	})
	Register(protocol.TagAssetUpdateBitasset, func(op protocol.Operation) (Evaluator, error) {
		return &assetUpdateBitassetEval{op: op.(protocol.AssetUpdateBitasset)}, nil
	})
}

type assetCreateEval struct {
	op protocol.AssetCreate
}

func (e *assetCreateEval) DoEvaluate(cs *state.Chainstate, ctx Context) error {
	if _, ok := cs.Accounts.Find(e.op.Issuer); !ok {
		return chainerr.Preconditionf(ctx.Where, "unknown issuer %s", e.op.Issuer)
	}
	if len(cs.AssetsBySymbol.Lookup(e.op.Symbol)) > 0 {
		return chainerr.Preconditionf(ctx.Where, "symbol %q already in use", e.op.Symbol)
	}
	return nil
}

func (e *assetCreateEval) DoApply(cs *state.Chainstate, ctx Context) ([]protocol.Operation, error) {
	if err := CollectFee(cs, e.op.Issuer, e.op.Fee, protocol.TagAssetCreate, ctx, ctx.Where); err != nil {
		return nil, err
	}
	_, err := cs.CreateAsset(func(a *state.Asset) {
		a.Symbol = e.op.Symbol
		a.Precision = e.op.Precision
		a.Issuer = e.op.Issuer
		a.Options = e.op.Options
	}, e.op.Bitasset)
	return nil, err
}

type assetUpdateEval struct {
	op protocol.AssetUpdate
}

func (e *assetUpdateEval) DoEvaluate(cs *state.Chainstate, ctx Context) error {
	a, ok := cs.Assets.Find(e.op.Asset)
	if !ok {
		return chainerr.Preconditionf(ctx.Where, "unknown asset %s", e.op.Asset)
	}
	if a.Issuer != e.op.Issuer {
		return chainerr.Preconditionf(ctx.Where, "only the issuer may update asset %s", e.op.Asset)
	}
	dd, ok := cs.AssetDynamicData.Find(a.DynamicDataID)
	if ok && e.op.Options.MaxSupply < dd.CurrentSupply {
		return chainerr.Policyf(ctx.Where, "new max_supply %d below current_supply %d", e.op.Options.MaxSupply, dd.CurrentSupply)
	}
	return nil
}

func (e *assetUpdateEval) DoApply(cs *state.Chainstate, ctx Context) ([]protocol.Operation, error) {
	if err := CollectFee(cs, e.op.Issuer, e.op.Fee, protocol.TagAssetUpdate, ctx, ctx.Where); err != nil {
		return nil, err
	}
	a, _ := cs.Assets.Find(e.op.Asset)
	objectdb.Modify(cs.DB, cs.Assets, a, func(x *state.Asset) { x.Options = e.op.Options })
	return nil, nil
}

type assetUpdateBitassetEval struct {
	op protocol.AssetUpdateBitasset
}

func (e *assetUpdateBitassetEval) DoEvaluate(cs *state.Chainstate, ctx Context) error {
	a, ok := cs.Assets.Find(e.op.Asset)
	if !ok || !a.IsMarketIssued {
		return chainerr.Preconditionf(ctx.Where, "%s is not a market-issued asset", e.op.Asset)
	}
	if a.Issuer != e.op.Issuer {
		return chainerr.Preconditionf(ctx.Where, "only the issuer may update bitasset options for %s", e.op.Asset)
	}
	return nil
}

func (e *assetUpdateBitassetEval) DoApply(cs *state.Chainstate, ctx Context) ([]protocol.Operation, error) {
	if err := CollectFee(cs, e.op.Issuer, e.op.Fee, protocol.TagAssetUpdateBitasset, ctx, ctx.Where); err != nil {
		return nil, err
	}
	a, _ := cs.Assets.Find(e.op.Asset)
	bd, ok := cs.BitassetData.Find(a.BitassetDataID)
	if !ok {
		return nil, chainerr.Invariantf("market-issued asset %s missing bitasset data", e.op.Asset)
	}
	objectdb.Modify(cs.DB, cs.BitassetData, bd, func(b *state.BitassetData) { b.Options = e.op.Options })
	return nil, nil
}
