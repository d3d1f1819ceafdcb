package evaluator

import (
	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/market"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func init() {
	Register(protocol.TagAssetPublishFeed, func(op protocol.Operation) (Evaluator, error) {
		return &publishFeedEval{op: op.(protocol.AssetPublishFeed)}, nil
	})
}

// AuthorizedFeedProducers is assigned by cmd/node at startup from
// chain.Engine to reflect the active witness set. The default returns
// nil, which RecomputeCurrentFeed treats as unrestricted, so the
// evaluator package has no hard dependency on pkg/chain.
var AuthorizedFeedProducers market.AuthorizedFeedProducers = func(objectdb.ID) map[objectdb.ID]struct{} { return nil }

type publishFeedEval struct {
	op protocol.AssetPublishFeed
}

func (e *publishFeedEval) DoEvaluate(cs *state.Chainstate, ctx Context) error {
	if err := e.op.Validate(); err != nil {
		return chainerr.Validationf(ctx.Where, "%s", err)
	}
	a, ok := cs.Assets.Find(e.op.Asset)
	if !ok || !a.IsMarketIssued {
		return chainerr.Preconditionf(ctx.Where, "%s is not a market-issued asset", e.op.Asset)
	}
	return nil
}

func (e *publishFeedEval) DoApply(cs *state.Chainstate, ctx Context) ([]protocol.Operation, error) {
	if err := CollectFee(cs, e.op.Publisher, e.op.Fee, protocol.TagAssetPublishFeed, ctx, ctx.Where); err != nil {
		return nil, err
	}
	a, _ := cs.Assets.Find(e.op.Asset)
	bd, ok := cs.BitassetData.Find(a.BitassetDataID)
	if !ok {
		return nil, chainerr.Invariantf("market-issued asset %s missing bitasset data", e.op.Asset)
	}

	market.PublishFeed(cs, bd, e.op.Publisher, e.op.Feed, ctx.NowUnix)
	market.RecomputeCurrentFeed(cs, bd, ctx.NowUnix, AuthorizedFeedProducers)

	bd, _ = cs.BitassetData.Find(a.BitassetDataID)
	_, _, err := market.CheckMarginCalls(cs, bd, bd.ShortBackingAssetID, a.Options.MarketFeePercent, ctx.Where)
	return nil, err
}
