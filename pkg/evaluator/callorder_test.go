package evaluator

import (
	"testing"

	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func mustBitasset(t *testing.T, cs *state.Chainstate, symbol string, mcr uint16) (*state.Asset, *state.Asset) {
	t.Helper()
	backing, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = "CORE" }, nil)
	if err != nil {
		t.Fatalf("create backing asset: %v", err)
	}
	bitasset, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = symbol }, &state.BitassetOptions{})
	if err != nil {
		t.Fatalf("create bitasset: %v", err)
	}
	bd, ok := cs.BitassetData.Find(bitasset.BitassetDataID)
	if !ok {
		t.Fatalf("missing bitasset data")
	}
	objectdb.Modify(cs.DB, cs.BitassetData, bd, func(b *state.BitassetData) {
		b.ShortBackingAssetID = backing.Id
		b.CurrentFeed = state.PriceFeed{
			SettlementPrice: state.Price{
				Base:  state.AssetAmount{AssetID: backing.Id, Amount: 1},
				Quote: state.AssetAmount{AssetID: bitasset.Id, Amount: 1},
			},
			MaintenanceCollateralRatio: mcr,
			MaximumShortSqueezeRatio:   mcr,
		}
	})
	return backing, bitasset
}

// TestCallOrderUpdateDerivesCallPriceFromMaintenanceRatio confirms that
// when the operation leaves CallPrice unset, the stored call order's
// call_price is actually scaled by the bitasset's current
// maintenance_collateral_ratio rather than the raw collateral/debt
// ratio.
func TestCallOrderUpdateDerivesCallPriceFromMaintenanceRatio(t *testing.T) {
	cs := state.NewChainstate()
	backing, bitasset := mustBitasset(t, cs, "USD", 1500)
	borrower := mustAccount(t, cs, "alice")
	cs.AddBalance(borrower.Id, backing.Id, 10_000)

	op := protocol.CallOrderUpdate{
		FundingAccount:  borrower.Id,
		DeltaCollateral: state.AssetAmount{AssetID: backing.Id, Amount: 2000},
		DeltaDebt:       state.AssetAmount{AssetID: bitasset.Id, Amount: 1000},
		Fee:             state.AssetAmount{AssetID: backing.Id, Amount: 0},
	}
	ctx := Context{Schedule: newTestSchedule(), Where: chainerr.OpIndex{}}
	if _, err := Apply(cs, op, ctx); err != nil {
		t.Fatalf("apply: %v", err)
	}

	ids := cs.CallsByBorrower.Lookup(borrower.Id)
	if len(ids) != 1 {
		t.Fatalf("want one call order, got %d", len(ids))
	}
	call, ok := cs.CallOrders.Find(ids[0])
	if !ok {
		t.Fatalf("call order missing")
	}
	wantBase := int64(2000) * 1500
	wantQuote := int64(1000) * int64(state.CollateralRatioDenom)
	if call.CallPrice.Base.Amount != wantBase || call.CallPrice.Quote.Amount != wantQuote {
		t.Fatalf("want call price scaled by MCR (%d/%d), got %d/%d", wantBase, wantQuote, call.CallPrice.Base.Amount, call.CallPrice.Quote.Amount)
	}
}

// TestCallOrderUpdateRejectsExplicitCallPriceBelowMaintenance confirms
// the maintenance-price floor runs unconditionally: a plain
// call_order_update with no TargetCollateralRatio must still be
// rejected if its (user-specified) call price sits below the
// feed-implied maintenance price.
func TestCallOrderUpdateRejectsExplicitCallPriceBelowMaintenance(t *testing.T) {
	cs := state.NewChainstate()
	backing, bitasset := mustBitasset(t, cs, "USD", 1500)
	borrower := mustAccount(t, cs, "alice")
	cs.AddBalance(borrower.Id, backing.Id, 10_000)

	op := protocol.CallOrderUpdate{
		FundingAccount:  borrower.Id,
		DeltaCollateral: state.AssetAmount{AssetID: backing.Id, Amount: 1000},
		DeltaDebt:       state.AssetAmount{AssetID: bitasset.Id, Amount: 1000},
		Fee:             state.AssetAmount{AssetID: backing.Id, Amount: 0},
		CallPrice: state.Price{
			Base:  state.AssetAmount{AssetID: backing.Id, Amount: 1000},
			Quote: state.AssetAmount{AssetID: bitasset.Id, Amount: 1000},
		},
	}
	ctx := Context{Schedule: newTestSchedule(), Where: chainerr.OpIndex{}}
	if _, err := Apply(cs, op, ctx); err == nil {
		t.Fatalf("want a call price below the feed-implied maintenance price rejected even with TargetCollateralRatio unset")
	}
}
