package chain

import (
	"sort"

	"github.com/hyperlicked/chaincore/pkg/market"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

// ActiveWitnessCount bounds the top-N witness selection at maintenance;
// a production deployment derives N from committee vote, which is a
// named Non-goal here (committee membership updates), so it is a
// package-level setting instead.
var ActiveWitnessCount = 21

// RunMaintenance implements spec.md §4.4's maintenance interval: fee
// payout, witness reshuffle, force-settlement processing, feed
// recomputation, and limit-order expiry.
func (e *Engine) RunMaintenance(nowUnix int64) ([]protocol.Operation, error) {
	if err := e.payoutPendingFees(); err != nil {
		return nil, err
	}
	e.reshuffleWitnesses(nowUnix)
	if err := e.expireLimitOrders(nowUnix); err != nil {
		return nil, err
	}
	virtuals, err := e.processForceSettlements(nowUnix)
	if err != nil {
		return nil, err
	}
	e.recomputeAllFeeds(nowUnix)
	return virtuals, nil
}

// payoutPendingFees implements spec.md §4.2 point 4: split every
// account's pending fee buckets into network burn / lifetime-referrer /
// referrer / registrar shares using the Cut primitive, crediting the
// network burn into the core asset's accumulated_fees.
func (e *Engine) payoutPendingFees() error {
	cs := e.State
	for _, acc := range cs.Accounts.All() {
		stats, ok := cs.AccountStats.Find(acc.StatisticsID)
		if !ok {
			continue
		}
		total := stats.PendingFees
		vested := stats.PendingVestedFees
		if total == 0 && vested == 0 {
			continue
		}

		split := protocol.SplitFee(total+vested, e.Schedule.NetworkPercent, acc.Options.LifetimeReferrerFeePercentage, acc.Options.ReferrerRewardPercentage)
		if split.LifetimeReferrer > 0 && !acc.Options.LifetimeReferrer.Zero() {
			cs.AddBalance(acc.Options.LifetimeReferrer, coreAssetID, split.LifetimeReferrer)
		}
		if split.Referrer > 0 && !acc.Options.Referrer.Zero() {
			cs.AddBalance(acc.Options.Referrer, coreAssetID, split.Referrer)
		}
		if split.Registrar > 0 && !acc.Options.Registrar.Zero() {
			cs.AddBalance(acc.Options.Registrar, coreAssetID, split.Registrar)
		}
		if split.NetworkBurn > 0 {
			creditCoreAccumulatedFees(cs, split.NetworkBurn)
		}

		objectdb.Modify(cs.DB, cs.AccountStats, stats, func(s *state.AccountStatistics) {
			s.PendingFees = 0
			s.PendingVestedFees = 0
		})
	}
	return nil
}

var coreAssetID = objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAsset, Instance: 0}

func creditCoreAccumulatedFees(cs *state.Chainstate, amount int64) {
	core, ok := cs.Assets.Find(coreAssetID)
	if !ok {
		return
	}
	dd, ok := cs.AssetDynamicData.Find(core.DynamicDataID)
	if !ok {
		return
	}
	objectdb.Modify(cs.DB, cs.AssetDynamicData, dd, func(d *state.AssetDynamicData) { d.AccumulatedFees += amount })
}

// reshuffleWitnesses selects the top ActiveWitnessCount witnesses by
// stake-weighted vote and installs them as the engine's active set
// (spec.md §4.4 point 4's "install into active_witnesses").
func (e *Engine) reshuffleWitnesses(nowUnix int64) {
	e.ActiveWitnesses = ShuffleActiveWitnesses(e.State, ActiveWitnessCount)
}

// AuthorizedFeedProducers returns the active witness accounts, the feed
// producer set for a witness-fed chain (spec.md names no committee
// entity, so every market-issued asset is treated as witness-fed).
// cmd/node wiring assigns this to evaluator.AuthorizedFeedProducers so
// asset-publish-feed's immediate recompute agrees with maintenance's.
func (e *Engine) AuthorizedFeedProducers(objectdb.ID) map[objectdb.ID]struct{} {
	out := make(map[objectdb.ID]struct{}, len(e.ActiveWitnesses))
	for _, w := range e.ActiveWitnesses {
		out[w.WitnessAccount] = struct{}{}
	}
	return out
}

// expireLimitOrders cancels every limit order past its expiration,
// crediting the residual back to the seller (spec.md §4.2's
// Limit-order-cancel postcondition, triggered here instead of by a
// user operation).
func (e *Engine) expireLimitOrders(nowUnix int64) error {
	cs := e.State
	var expired []*state.LimitOrder
	for _, o := range cs.LimitOrders.All() {
		if o.Expiration != 0 && o.Expiration <= nowUnix {
			expired = append(expired, o)
		}
	}
	for _, o := range expired {
		cs.AddBalance(o.Seller, o.SellPrice.Base.AssetID, o.ForSale)
		objectdb.Remove(cs.DB, cs.LimitOrders, o)
	}
	return nil
}

// processForceSettlements implements spec.md §4.3's force-settlement
// processing: FIFO order against the feed-derived settlement price,
// capped at max_force_settlement_volume per day.
func (e *Engine) processForceSettlements(nowUnix int64) ([]protocol.Operation, error) {
	cs := e.State
	var virtuals []protocol.Operation

	byAsset := map[objectdb.ID][]*state.ForceSettlementOrder{}
	for _, f := range cs.ForceSettlements.All() {
		if f.SettlementDate <= nowUnix {
			byAsset[f.Balance.AssetID] = append(byAsset[f.Balance.AssetID], f)
		}
	}

	for assetID, orders := range byAsset {
		sort.Slice(orders, func(i, j int) bool {
			if orders[i].SettlementDate != orders[j].SettlementDate {
				return orders[i].SettlementDate < orders[j].SettlementDate
			}
			return orders[i].Id.Instance < orders[j].Id.Instance
		})

		a, ok := cs.Assets.Find(assetID)
		if !ok || !a.IsMarketIssued {
			continue
		}
		bd, ok := cs.BitassetData.Find(a.BitassetDataID)
		if !ok || bd.HasSettlement {
			continue
		}
		price := bd.CurrentFeed.SettlementPrice
		if price.Base.Amount == 0 {
			continue // no current feed: frozen
		}

		maxVolume := protocol.Cut(totalSupply(cs, assetID), bd.Options.MaximumForceSettlementVolume)
		var settledToday int64
		for _, f := range orders {
			if settledToday >= maxVolume {
				break
			}
			amount := f.Balance.Amount
			if settledToday+amount > maxVolume {
				amount = maxVolume - settledToday
			}
			if amount <= 0 {
				break
			}
			payout := price.Mul(amount)
			if payout > bd.SettlementFund {
				payout = bd.SettlementFund
			}

			cs.AddBalance(f.Owner, bd.ShortBackingAssetID, payout)
			objectdb.Modify(cs.DB, cs.BitassetData, bd, func(b *state.BitassetData) { b.SettlementFund -= payout })
			settledToday += amount

			if amount >= f.Balance.Amount {
				objectdb.Remove(cs.DB, cs.ForceSettlements, f)
			} else {
				objectdb.Modify(cs.DB, cs.ForceSettlements, f, func(x *state.ForceSettlementOrder) { x.Balance.Amount -= amount })
			}
			virtuals = append(virtuals, protocol.AssetSettleCancel{Settlement: f.Id, Account: f.Owner, Amount: state.AssetAmount{AssetID: bd.ShortBackingAssetID, Amount: payout}})
		}
	}
	return virtuals, nil
}

func totalSupply(cs *state.Chainstate, assetID objectdb.ID) int64 {
	a, ok := cs.Assets.Find(assetID)
	if !ok {
		return 0
	}
	dd, ok := cs.AssetDynamicData.Find(a.DynamicDataID)
	if !ok {
		return 0
	}
	return dd.CurrentSupply
}

// recomputeAllFeeds re-runs median feed computation for every
// market-issued asset, dropping expired feeds (spec.md §4.3's
// price-feed lifetime rule).
func (e *Engine) recomputeAllFeeds(nowUnix int64) {
	cs := e.State
	for _, a := range cs.Assets.All() {
		if !a.IsMarketIssued {
			continue
		}
		bd, ok := cs.BitassetData.Find(a.BitassetDataID)
		if !ok {
			continue
		}
		market.RecomputeCurrentFeed(cs, bd, nowUnix, e.AuthorizedFeedProducers)
	}
}
