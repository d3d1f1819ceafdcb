package state

import "testing"

func TestCreateAccountWiresStatisticsBacklink(t *testing.T) {
	cs := NewChainstate()
	acc, err := cs.CreateAccount(func(a *Account) { a.Name = "alice" })
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if acc.StatisticsID.Zero() {
		t.Fatalf("want a non-zero statistics backlink")
	}
	stats, ok := cs.AccountStats.Find(acc.StatisticsID)
	if !ok {
		t.Fatalf("want the backlinked statistics object to exist")
	}
	if stats.Owner != acc.Id {
		t.Fatalf("want statistics.Owner to point back to the account")
	}
	if ids := cs.AccountsByName.Lookup("alice"); len(ids) != 1 || ids[0] != acc.Id {
		t.Fatalf("want the account findable by name, got %v", ids)
	}
}

func TestCreateAssetWiresDynamicDataAndBitasset(t *testing.T) {
	cs := NewChainstate()
	a, err := cs.CreateAsset(func(a *Asset) { a.Symbol = "USD" }, &BitassetOptions{})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	if a.DynamicDataID.Zero() {
		t.Fatalf("want a non-zero dynamic-data backlink")
	}
	if !a.IsMarketIssued {
		t.Fatalf("want IsMarketIssued set when bitasset options are supplied")
	}
	bd, ok := cs.BitassetData.Find(a.BitassetDataID)
	if !ok {
		t.Fatalf("want the backlinked bitasset data to exist")
	}
	if bd.AssetID != a.Id {
		t.Fatalf("want bitasset data to reference its asset")
	}
}

func TestCreateAssetWithoutBitassetOptions(t *testing.T) {
	cs := NewChainstate()
	a, err := cs.CreateAsset(func(a *Asset) { a.Symbol = "CORE" }, nil)
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	if a.IsMarketIssued {
		t.Fatalf("want IsMarketIssued false for a plain asset")
	}
	if !a.BitassetDataID.Zero() {
		t.Fatalf("want no bitasset data wired for a plain asset")
	}
}

func TestAddBalanceCreatesThenAccumulates(t *testing.T) {
	cs := NewChainstate()
	owner := asset(1)
	core := asset(2)

	cs.AddBalance(owner, core, 100)
	if got := cs.Balance(owner, core); got != 100 {
		t.Fatalf("want balance 100 after first credit, got %d", got)
	}

	cs.AddBalance(owner, core, -30)
	if got := cs.Balance(owner, core); got != 70 {
		t.Fatalf("want balance 70 after debit, got %d", got)
	}
}

func TestBalanceOfUnknownPairIsZero(t *testing.T) {
	cs := NewChainstate()
	if got := cs.Balance(asset(1), asset(2)); got != 0 {
		t.Fatalf("want 0 for a pair with no Balance object, got %d", got)
	}
}

func TestActiveAuthorityResolvesAccount(t *testing.T) {
	cs := NewChainstate()
	acc, err := cs.CreateAccount(func(a *Account) {
		a.Name = "bob"
		a.Active = Authority{WeightThreshold: 1}
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	got, ok := cs.ActiveAuthority(acc.Id)
	if !ok {
		t.Fatalf("want ActiveAuthority to resolve a known account")
	}
	if got.WeightThreshold != 1 {
		t.Fatalf("want the account's own active authority returned")
	}
	if _, ok := cs.ActiveAuthority(asset(999)); ok {
		t.Fatalf("want ActiveAuthority to fail for an unknown id")
	}
}
