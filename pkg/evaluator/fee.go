package evaluator

import (
	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

// coreAsset is the network's fee-denomination asset (instance 0 of the
// protocol asset space, by Graphene convention).
var coreAsset = objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAsset, Instance: 0}

// CollectFee implements spec.md §4.2's fee-handling steps 1-3: convert
// the offered fee to core value via the fee asset's core-exchange rate,
// assert it covers the schedule's fee for tag, then debit the payer's
// balance into their pending_fees (or pending_vested_fees, if a
// lifetime member) bucket.
func CollectFee(cs *state.Chainstate, payer objectdb.ID, offered state.AssetAmount, tag protocol.Tag, ctx Context, where chainerr.OpIndex) error {
	coreValue := offered.Amount
	if offered.AssetID != coreAsset {
		asset, ok := cs.Assets.Find(offered.AssetID)
		if !ok {
			return chainerr.Preconditionf(where, "unknown fee asset %s", offered.AssetID)
		}
		coreValue = asset.Options.CoreExchangeRate.Mul(offered.Amount)
	}

	acc, ok := cs.Accounts.Find(payer)
	if !ok {
		return chainerr.Preconditionf(where, "unknown fee payer %s", payer)
	}
	stats, ok := cs.AccountStats.Find(acc.StatisticsID)
	if !ok {
		return chainerr.Invariantf("account %s missing statistics object", payer)
	}
	required := ctx.Schedule.Fee(tag, stats.LifetimeFeesPaid)
	if coreValue < required {
		return chainerr.Policyf(where, "offered fee %d core-equivalent below required %d", coreValue, required)
	}

	bal := cs.Balance(payer, offered.AssetID)
	if bal < offered.Amount {
		return chainerr.Preconditionf(where, "insufficient balance for fee: have %d, need %d", bal, offered.Amount)
	}
	cs.AddBalance(payer, offered.AssetID, -offered.Amount)

	objectdb.Modify(cs.DB, cs.AccountStats, stats, func(s *state.AccountStatistics) {
		if acc.Options.IsLifetimeMember {
			s.PendingVestedFees += coreValue
		} else {
			s.PendingFees += coreValue
		}
		s.LifetimeFeesPaid += coreValue
	})
	return nil
}
