package evaluator

import (
	"testing"

	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func TestLimitOrderCreateRestsWhenNothingCrosses(t *testing.T) {
	cs := state.NewChainstate()
	core := objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAsset, Instance: 0}
	seller := mustAccount(t, cs, "alice")
	base, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = "BASE" }, nil)
	if err != nil {
		t.Fatalf("create base asset: %v", err)
	}
	quote, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = "QUOTE" }, nil)
	if err != nil {
		t.Fatalf("create quote asset: %v", err)
	}
	cs.AddBalance(seller.Id, base.Id, 1000)
	cs.AddBalance(seller.Id, core, 100)

	op := protocol.LimitOrderCreate{
		Seller:       seller.Id,
		AmountToSell: state.AssetAmount{AssetID: base.Id, Amount: 100},
		MinToReceive: state.AssetAmount{AssetID: quote.Id, Amount: 100},
		Fee:          state.AssetAmount{AssetID: core, Amount: 10},
	}
	ctx := Context{Schedule: newTestSchedule(), Where: chainerr.OpIndex{}}

	virtuals, err := Apply(cs, op, ctx)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(virtuals) != 0 {
		t.Fatalf("want no fills when the book is empty, got %d", len(virtuals))
	}
	if got := cs.Balance(seller.Id, base.Id); got != 900 {
		t.Fatalf("want the for-sale amount debited from the seller, got %d", got)
	}
	orders := cs.LimitOrders.All()
	if len(orders) != 1 {
		t.Fatalf("want one resting order, got %d", len(orders))
	}
}

func TestLimitOrderCreateRejectsInsufficientBalance(t *testing.T) {
	cs := state.NewChainstate()
	core := objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAsset, Instance: 0}
	seller := mustAccount(t, cs, "alice")
	base, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = "BASE" }, nil)
	if err != nil {
		t.Fatalf("create base asset: %v", err)
	}
	quote, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = "QUOTE" }, nil)
	if err != nil {
		t.Fatalf("create quote asset: %v", err)
	}
	cs.AddBalance(seller.Id, core, 100)

	op := protocol.LimitOrderCreate{
		Seller:       seller.Id,
		AmountToSell: state.AssetAmount{AssetID: base.Id, Amount: 100},
		MinToReceive: state.AssetAmount{AssetID: quote.Id, Amount: 100},
		Fee:          state.AssetAmount{AssetID: core, Amount: 10},
	}
	ctx := Context{Schedule: newTestSchedule(), Where: chainerr.OpIndex{}}

	if _, err := Apply(cs, op, ctx); err == nil {
		t.Fatalf("want insufficient for-sale balance to be rejected")
	}
}

func TestLimitOrderCancelRefundsResidual(t *testing.T) {
	cs := state.NewChainstate()
	core := objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAsset, Instance: 0}
	seller := mustAccount(t, cs, "alice")
	base, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = "BASE" }, nil)
	if err != nil {
		t.Fatalf("create base asset: %v", err)
	}
	quote, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = "QUOTE" }, nil)
	if err != nil {
		t.Fatalf("create quote asset: %v", err)
	}
	cs.AddBalance(seller.Id, base.Id, 1000)
	cs.AddBalance(seller.Id, core, 100)

	createOp := protocol.LimitOrderCreate{
		Seller:       seller.Id,
		AmountToSell: state.AssetAmount{AssetID: base.Id, Amount: 100},
		MinToReceive: state.AssetAmount{AssetID: quote.Id, Amount: 100},
		Fee:          state.AssetAmount{AssetID: core, Amount: 10},
	}
	ctx := Context{Schedule: newTestSchedule(), Where: chainerr.OpIndex{}}
	if _, err := Apply(cs, createOp, ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	orders := cs.LimitOrders.All()
	if len(orders) != 1 {
		t.Fatalf("want one resting order before cancel, got %d", len(orders))
	}
	orderID := orders[0].Id

	cancelOp := protocol.LimitOrderCancel{
		Order: orderID,
		Fee:   state.AssetAmount{AssetID: core, Amount: 10},
	}
	if _, err := Apply(cs, cancelOp, ctx); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := cs.Balance(seller.Id, base.Id); got != 1000 {
		t.Fatalf("want the residual refunded back to 1000, got %d", got)
	}
	if len(cs.LimitOrders.All()) != 0 {
		t.Fatalf("want the order removed after cancel")
	}
}

func TestLimitOrderCancelRejectsUnknownOrder(t *testing.T) {
	cs := state.NewChainstate()
	core := objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAsset, Instance: 0}
	op := protocol.LimitOrderCancel{
		Order: objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeLimitOrder, Instance: 999},
		Fee:   state.AssetAmount{AssetID: core, Amount: 10},
	}
	ctx := Context{Schedule: newTestSchedule(), Where: chainerr.OpIndex{}}
	if _, err := Apply(cs, op, ctx); err == nil {
		t.Fatalf("want cancelling an unknown order to be rejected")
	}
}
