package market

import (
	"testing"

	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func onePriceFeed(backing, bitasset objectdb.ID, mcr, maxSqueeze uint16) state.PriceFeed {
	return state.PriceFeed{
		SettlementPrice: state.Price{
			Base:  state.AssetAmount{AssetID: backing, Amount: 1},
			Quote: state.AssetAmount{AssetID: bitasset, Amount: 1},
		},
		MaintenanceCollateralRatio: mcr,
		MaximumShortSqueezeRatio:   maxSqueeze,
	}
}

// TestCoverCallStopsAtTargetCollateralRatio confirms a call order
// carrying a TargetCollateralRatio is only bought back as far as that
// ratio, instead of coverCall always closing it out to zero debt
// against the entire resting ask book.
func TestCoverCallStopsAtTargetCollateralRatio(t *testing.T) {
	cs := state.NewChainstate()
	backing, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = "CORE" }, nil)
	if err != nil {
		t.Fatalf("create backing asset: %v", err)
	}
	bitasset, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = "USD" }, &state.BitassetOptions{})
	if err != nil {
		t.Fatalf("create bitasset: %v", err)
	}
	borrower, err := cs.CreateAccount(func(a *state.Account) { a.Name = "alice" })
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	seller, err := cs.CreateAccount(func(a *state.Account) { a.Name = "bob" })
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	call, err := objectdb.Create(cs.DB, cs.CallOrders, func(c *state.CallOrder) {
		c.Borrower = borrower.Id
		c.Collateral = 1200
		c.Debt = 1000
		c.TargetCollateralRatio = 1800 // 1.8x
		c.CallPrice = state.Price{Base: state.AssetAmount{AssetID: backing.Id, Amount: 1200}, Quote: state.AssetAmount{AssetID: bitasset.Id, Amount: 1000}}
	})
	if err != nil {
		t.Fatalf("create call order: %v", err)
	}

	if _, err := objectdb.Create(cs.DB, cs.LimitOrders, func(o *state.LimitOrder) {
		o.Seller = seller.Id
		o.ForSale = 5000
		o.SellPrice = state.Price{Base: state.AssetAmount{AssetID: backing.Id, Amount: 1}, Quote: state.AssetAmount{AssetID: bitasset.Id, Amount: 1}}
		o.Expiration = 1 << 40
	}); err != nil {
		t.Fatalf("create ask: %v", err)
	}

	feed := onePriceFeed(backing.Id, bitasset.Id, 1400, state.CollateralRatioDenom)
	ceiling := MaxShortSqueezePrice(feed)

	covered, fills, err := coverCall(cs, call, backing.Id, bitasset.Id, ceiling, feed, 0)
	if err != nil {
		t.Fatalf("coverCall: %v", err)
	}
	if !covered {
		t.Fatalf("want coverCall to report the order restored once it reaches its target ratio")
	}
	if len(fills) == 0 {
		t.Fatalf("want at least one fill")
	}

	after, ok := cs.CallOrders.Find(call.Id)
	if !ok {
		t.Fatalf("want the call order to survive a target-ratio cover, not be removed")
	}
	if after.Debt == 0 || after.Debt == 1000 {
		t.Fatalf("want a partial fill leaving the order open with reduced debt, got debt=%d", after.Debt)
	}
	ratio := after.Collateralization(backing.Id, bitasset.Id)
	target := state.Price{
		Base:  state.AssetAmount{AssetID: backing.Id, Amount: int64(call.TargetCollateralRatio)},
		Quote: state.AssetAmount{AssetID: bitasset.Id, Amount: int64(state.CollateralRatioDenom)},
	}
	if ratio.Less(target) {
		t.Fatalf("want the post-fill collateralization at or above the target ratio")
	}
}

// TestSolveTargetDebtToCoverReturnsZeroWhenAlreadyAtTarget confirms the
// formula returns zero rather than a negative amount once the order is
// already at or above its target ratio.
func TestSolveTargetDebtToCoverReturnsZeroWhenAlreadyAtTarget(t *testing.T) {
	got := SolveTargetDebtToCover(1000, 2000, 1500, 1, 1, 1, 1)
	if got != 0 {
		t.Fatalf("want no further debt to cover once already above target, got %d", got)
	}
}
