// Package market implements the continuous double-auction engine of
// spec.md §4.3: price-sorted order book views over objectdb-resident
// LimitOrder/CallOrder entities, the match primitive, margin-call and
// black-swan handling, and feed-median computation. Grounded on the
// teacher's heap-based orderbook (pkg/app/core/orderbook/orderbook.go)
// generalized from an in-memory int64-price heap to 128-bit
// cross-multiplied state.Price sorting over entities the undo-aware
// Object DB owns.
package market

import (
	"sort"

	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/state"
)

// Pair identifies a trading pair by its two asset ids. Orders with
// SellPrice.Base==Base, Quote==Quote are the "ask" side (selling Base
// for Quote); orders with Base/Quote swapped are the "bid" side.
type Pair struct {
	Base  objectdb.ID
	Quote objectdb.ID
}

// AsksFor returns every open order selling pair.Base for pair.Quote,
// sorted ascending by SellPrice with object id as the tie-break, per
// spec.md §4.3's "limit-by-price" index.
func AsksFor(cs *state.Chainstate, pair Pair) []*state.LimitOrder {
	return ordersFor(cs, pair.Base, pair.Quote)
}

// BidsFor returns every open order selling pair.Quote for pair.Base
// (i.e. buying Base), sorted ascending by each order's own SellPrice
// (Quote/Base) with object id as the tie-break, so the order with the
// highest inverted price in Base/Quote terms sorts first.
func BidsFor(cs *state.Chainstate, pair Pair) []*state.LimitOrder {
	return ordersFor(cs, pair.Quote, pair.Base)
}

func ordersFor(cs *state.Chainstate, sellAsset, wantAsset objectdb.ID) []*state.LimitOrder {
	var out []*state.LimitOrder
	for _, o := range cs.LimitOrders.All() {
		if o.SellPrice.Base.AssetID == sellAsset && o.SellPrice.Quote.AssetID == wantAsset {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SellPrice.Equal(out[j].SellPrice) {
			return out[i].Id.Instance < out[j].Id.Instance
		}
		return out[i].SellPrice.Less(out[j].SellPrice)
	})
	return out
}

// BestAsk returns the lowest-priced open ask for pair, if any.
func BestAsk(cs *state.Chainstate, pair Pair) (*state.LimitOrder, bool) {
	asks := AsksFor(cs, pair)
	if len(asks) == 0 {
		return nil, false
	}
	return asks[0], true
}

// CallOrdersByCallPrice returns every open call order against bitasset,
// sorted ascending by CallPrice, ties broken by object id — spec.md
// §4.3's "call-by-price" index.
func CallOrdersByCallPrice(cs *state.Chainstate, backingAsset, bitasset objectdb.ID) []*state.CallOrder {
	return callOrdersSorted(cs, bitasset, func(c *state.CallOrder) state.Price { return c.CallPrice })
}

// CallOrdersByCollateralization returns every open call order against
// bitasset, sorted ascending by collateralization ratio (least
// collateralized first) — spec.md §4.3's post-hardfork
// "call-by-collateralization" index, used to pick the margin-call and
// black-swan candidate.
func CallOrdersByCollateralization(cs *state.Chainstate, backingAsset, bitasset objectdb.ID) []*state.CallOrder {
	return callOrdersSorted(cs, bitasset, func(c *state.CallOrder) state.Price {
		return c.Collateralization(backingAsset, bitasset)
	})
}

func callOrdersSorted(cs *state.Chainstate, bitasset objectdb.ID, keyOf func(*state.CallOrder) state.Price) []*state.CallOrder {
	var out []*state.CallOrder
	for _, c := range cs.CallOrders.All() {
		if c.CallPrice.Quote.AssetID == bitasset {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := keyOf(out[i]), keyOf(out[j])
		if pi.Equal(pj) {
			return out[i].Id.Instance < out[j].Id.Instance
		}
		return pi.Less(pj)
	})
	return out
}
