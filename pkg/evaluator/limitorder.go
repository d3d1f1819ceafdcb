package evaluator

import (
	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/market"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func init() {
	Register(protocol.TagLimitOrderCreate, func(op protocol.Operation) (Evaluator, error) {
		return &limitOrderCreateEval{op: op.(protocol.LimitOrderCreate)}, nil
	})
	Register(protocol.TagLimitOrderCancel, func(op protocol.Operation) (Evaluator, error) {
		return &limitOrderCancelEval{op: op.(protocol.LimitOrderCancel)}, nil
	})
}

type limitOrderCreateEval struct {
	op protocol.LimitOrderCreate
}

func (e *limitOrderCreateEval) DoEvaluate(cs *state.Chainstate, ctx Context) error {
	if _, ok := cs.Accounts.Find(e.op.Seller); !ok {
		return chainerr.Preconditionf(ctx.Where, "unknown seller %s", e.op.Seller)
	}
	if cs.Balance(e.op.Seller, e.op.AmountToSell.AssetID) < e.op.AmountToSell.Amount {
		return chainerr.Preconditionf(ctx.Where, "insufficient balance to sell")
	}
	if e.op.Expiration != 0 && e.op.Expiration < ctx.NowUnix {
		return chainerr.Policyf(ctx.Where, "expiration %d is in the past", e.op.Expiration)
	}
	return nil
}

func (e *limitOrderCreateEval) DoApply(cs *state.Chainstate, ctx Context) ([]protocol.Operation, error) {
	if err := CollectFee(cs, e.op.Seller, e.op.Fee, protocol.TagLimitOrderCreate, ctx, ctx.Where); err != nil {
		return nil, err
	}
	cs.AddBalance(e.op.Seller, e.op.AmountToSell.AssetID, -e.op.AmountToSell.Amount)

	order, err := objectdb.Create(cs.DB, cs.LimitOrders, func(o *state.LimitOrder) {
		o.Seller = e.op.Seller
		o.ForSale = e.op.AmountToSell.Amount
		o.SellPrice = e.op.SellPrice()
		o.Expiration = e.op.Expiration
		o.FillOrKill = e.op.FillOrKill
	})
	if err != nil {
		return nil, err
	}

	marketFeeBps := feeBpsFor(cs, e.op.MinToReceive.AssetID)
	pair := market.Pair{Base: e.op.AmountToSell.AssetID, Quote: e.op.MinToReceive.AssetID}
	fills, err := market.Match(cs, pair, order, marketFeeBps, ctx.Where)
	if err != nil {
		return nil, err
	}

	virtuals := make([]protocol.Operation, 0, len(fills))
	for _, f := range fills {
		virtuals = append(virtuals, protocol.FillOrder{Order: f.TakerOrder, Account: order.Seller, Pays: f.TakerPays, Receives: f.TakerGets, IsMaker: false})
	}
	if err := recheckMarginCalls(cs, e.op.AmountToSell.AssetID, ctx); err != nil {
		return virtuals, err
	}
	if err := recheckMarginCalls(cs, e.op.MinToReceive.AssetID, ctx); err != nil {
		return virtuals, err
	}
	return virtuals, nil
}

func feeBpsFor(cs *state.Chainstate, asset objectdb.ID) uint16 {
	a, ok := cs.Assets.Find(asset)
	if !ok {
		return 0
	}
	return a.Options.MarketFeePercent
}

// recheckMarginCalls runs the margin-call trigger for asset if it is a
// market-issued bitasset, per spec.md §4.3's "after every event that
// could change the book" rule.
func recheckMarginCalls(cs *state.Chainstate, asset objectdb.ID, ctx Context) error {
	a, ok := cs.Assets.Find(asset)
	if !ok || !a.IsMarketIssued {
		return nil
	}
	bd, ok := cs.BitassetData.Find(a.BitassetDataID)
	if !ok {
		return nil
	}
	_, blackSwan, err := market.CheckMarginCalls(cs, bd, bd.ShortBackingAssetID, a.Options.MarketFeePercent, ctx.Where)
	if err != nil {
		return err
	}
	_ = blackSwan
	return nil
}

type limitOrderCancelEval struct {
	op protocol.LimitOrderCancel
}

func (e *limitOrderCancelEval) DoEvaluate(cs *state.Chainstate, ctx Context) error {
	if _, ok := cs.LimitOrders.Find(e.op.Order); !ok {
		return chainerr.Preconditionf(ctx.Where, "unknown order %s", e.op.Order)
	}
	return nil
}

func (e *limitOrderCancelEval) DoApply(cs *state.Chainstate, ctx Context) ([]protocol.Operation, error) {
	order, _ := cs.LimitOrders.Find(e.op.Order)
	seller := order.Seller
	sellAsset := order.SellPrice.Base.AssetID
	wantAsset := order.SellPrice.Quote.AssetID

	cs.AddBalance(seller, sellAsset, order.ForSale)
	objectdb.Remove(cs.DB, cs.LimitOrders, order)

	if err := CollectFee(cs, seller, e.op.Fee, protocol.TagLimitOrderCancel, ctx, ctx.Where); err != nil {
		return nil, err
	}
	if err := recheckMarginCalls(cs, sellAsset, ctx); err != nil {
		return nil, err
	}
	if err := recheckMarginCalls(cs, wantAsset, ctx); err != nil {
		return nil, err
	}
	return nil, nil
}
