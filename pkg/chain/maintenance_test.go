package chain

import (
	"testing"

	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/state"
)

// settlementFixture builds a market-issued bitasset with a published
// feed and a funded settlement pool, backed by a plain core asset.
func settlementFixture(t *testing.T, maxVolumeBps uint16) (*state.Chainstate, *state.Asset, *state.BitassetData) {
	t.Helper()
	cs := state.NewChainstate()
	backing, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = "CORE" }, nil)
	if err != nil {
		t.Fatalf("create backing asset: %v", err)
	}
	bitasset, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = "USD" }, &state.BitassetOptions{
		MaximumForceSettlementVolume: maxVolumeBps,
	})
	if err != nil {
		t.Fatalf("create bitasset: %v", err)
	}
	dd, ok := cs.AssetDynamicData.Find(bitasset.DynamicDataID)
	if !ok {
		t.Fatalf("missing dynamic data for bitasset")
	}
	objectdb.Modify(cs.DB, cs.AssetDynamicData, dd, func(d *state.AssetDynamicData) { d.CurrentSupply = 1000 })

	bd, ok := cs.BitassetData.Find(bitasset.BitassetDataID)
	if !ok {
		t.Fatalf("missing bitasset data")
	}
	objectdb.Modify(cs.DB, cs.BitassetData, bd, func(b *state.BitassetData) {
		b.ShortBackingAssetID = backing.Id
		b.SettlementFund = 1_000_000
		b.CurrentFeed = state.PriceFeed{
			SettlementPrice: state.Price{
				Base:  state.AssetAmount{AssetID: backing.Id, Amount: 1},
				Quote: state.AssetAmount{AssetID: bitasset.Id, Amount: 1},
			},
			MaintenanceCollateralRatio: state.MinCollateralRatio,
			MaximumShortSqueezeRatio:   state.MinCollateralRatio,
		}
	})
	bd, _ = cs.BitassetData.Find(bitasset.BitassetDataID)
	return cs, bitasset, bd
}

func mustSettlementOrder(t *testing.T, cs *state.Chainstate, owner objectdb.ID, bitasset objectdb.ID, amount int64, settlementDate int64) *state.ForceSettlementOrder {
	t.Helper()
	f, err := objectdb.Create(cs.DB, cs.ForceSettlements, func(f *state.ForceSettlementOrder) {
		f.Owner = owner
		f.Balance = state.AssetAmount{AssetID: bitasset, Amount: amount}
		f.SettlementDate = settlementDate
	})
	if err != nil {
		t.Fatalf("create force settlement order: %v", err)
	}
	return f
}

// TestProcessForceSettlementsOrdersFIFOUnderVolumeCap confirms the
// volume cap is applied in (SettlementDate, Id) order, not Go's
// unspecified map iteration order: the earliest orders must be the
// ones that settle, regardless of which order they were inserted in.
func TestProcessForceSettlementsOrdersFIFOUnderVolumeCap(t *testing.T) {
	// max volume = 10% of supply (1000) = 100.
	cs, bitasset, _ := settlementFixture(t, 1000)
	e := &Engine{State: cs}

	owner, err := cs.CreateAccount(func(a *state.Account) { a.Name = "alice" })
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	// Inserted newest-first so a map-order iteration would very likely
	// process them out of FIFO order; settlement date must win.
	late := mustSettlementOrder(t, cs, owner.Id, bitasset.Id, 60, 300)
	early := mustSettlementOrder(t, cs, owner.Id, bitasset.Id, 60, 100)
	mid := mustSettlementOrder(t, cs, owner.Id, bitasset.Id, 60, 200)

	if _, err := e.processForceSettlements(1000); err != nil {
		t.Fatalf("processForceSettlements: %v", err)
	}

	if _, stillOpen := cs.ForceSettlements.Find(early.Id); stillOpen {
		t.Fatalf("want the earliest settlement fully settled first")
	}
	remainingMid, ok := cs.ForceSettlements.Find(mid.Id)
	if !ok {
		t.Fatalf("want the second-earliest settlement partially settled, not removed")
	}
	if remainingMid.Balance.Amount != 20 {
		t.Fatalf("want 40 of the 60 volume cap remainder spent on the second order, got balance %d", remainingMid.Balance.Amount)
	}
	remainingLate, ok := cs.ForceSettlements.Find(late.Id)
	if !ok {
		t.Fatalf("want the latest settlement left untouched, not removed")
	}
	if remainingLate.Balance.Amount != 60 {
		t.Fatalf("want the latest settlement entirely unfilled once the cap is exhausted, got balance %d", remainingLate.Balance.Amount)
	}
}
