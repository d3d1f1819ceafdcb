package state

import (
	"testing"

	"github.com/hyperlicked/chaincore/pkg/objectdb"
)

func asset(instance uint64) objectdb.ID {
	return objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAsset, Instance: instance}
}

func TestPriceCompareEquivalentFractions(t *testing.T) {
	p := Price{Base: AssetAmount{AssetID: asset(1), Amount: 2}, Quote: AssetAmount{AssetID: asset(2), Amount: 4}}
	q := Price{Base: AssetAmount{AssetID: asset(1), Amount: 1}, Quote: AssetAmount{AssetID: asset(2), Amount: 2}}
	if !p.Equal(q) {
		t.Fatalf("want 2/4 to equal the simplified fraction 1/2")
	}
}

func TestPriceCompareOrdering(t *testing.T) {
	cheap := Price{Base: AssetAmount{AssetID: asset(1), Amount: 1}, Quote: AssetAmount{AssetID: asset(2), Amount: 10}}
	dear := Price{Base: AssetAmount{AssetID: asset(1), Amount: 1}, Quote: AssetAmount{AssetID: asset(2), Amount: 5}}
	if !cheap.Less(dear) {
		t.Fatalf("want 1/10 < 1/5")
	}
	if !dear.Greater(cheap) {
		t.Fatalf("want 1/5 > 1/10")
	}
}

func TestPriceValidRejectsNonPositiveOrSameAsset(t *testing.T) {
	if err := (Price{Base: AssetAmount{AssetID: asset(1), Amount: 0}, Quote: AssetAmount{AssetID: asset(2), Amount: 1}}).Valid(); err == nil {
		t.Fatalf("want zero base amount rejected")
	}
	if err := (Price{Base: AssetAmount{AssetID: asset(1), Amount: 1}, Quote: AssetAmount{AssetID: asset(1), Amount: 1}}).Valid(); err == nil {
		t.Fatalf("want identical base/quote asset rejected")
	}
}

func TestPriceInvert(t *testing.T) {
	p := Price{Base: AssetAmount{AssetID: asset(1), Amount: 3}, Quote: AssetAmount{AssetID: asset(2), Amount: 7}}
	inv := p.Invert()
	if inv.Base.AssetID != asset(2) || inv.Quote.AssetID != asset(1) {
		t.Fatalf("want inverted price to swap base/quote assets")
	}
	if inv.Base.Amount != 7 || inv.Quote.Amount != 3 {
		t.Fatalf("want inverted price to swap amounts, got %+v", inv)
	}
}

func TestPriceMulTruncatesTowardZero(t *testing.T) {
	// price = 1/3 (base=1, quote=3); multiplying 10 quote-units should
	// truncate 10/3 = 3.33 down to 3.
	p := Price{Base: AssetAmount{AssetID: asset(1), Amount: 1}, Quote: AssetAmount{AssetID: asset(2), Amount: 3}}
	if got := p.Mul(10); got != 3 {
		t.Fatalf("want Mul(10) = 3, got %d", got)
	}
}
