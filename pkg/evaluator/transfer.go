package evaluator

import (
	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func init() {
	Register(protocol.TagTransfer, func(op protocol.Operation) (Evaluator, error) {
		return &transferEval{op: op.(protocol.Transfer)}, nil
	})
}

type transferEval struct {
	op protocol.Transfer
}

// DoEvaluate checks both accounts exist and the asset's transfer
// restriction / whitelist constraints, per spec.md §4.2's Transfer spec.
func (e *transferEval) DoEvaluate(cs *state.Chainstate, ctx Context) error {
	if _, ok := cs.Accounts.Find(e.op.From); !ok {
		return chainerr.Preconditionf(ctx.Where, "unknown sender %s", e.op.From)
	}
	to, ok := cs.Accounts.Find(e.op.To)
	if !ok {
		return chainerr.Preconditionf(ctx.Where, "unknown recipient %s", e.op.To)
	}

	asset, ok := cs.Assets.Find(e.op.Amount.AssetID)
	if !ok {
		return chainerr.Preconditionf(ctx.Where, "unknown asset %s", e.op.Amount.AssetID)
	}
	if asset.Options.TransferRestricted {
		if !whitelisted(asset.Options.WhitelistAuthorities, to.Id) {
			return chainerr.Preconditionf(ctx.Where, "recipient %s not whitelisted for restricted asset %s", to.Id, asset.Id)
		}
	}
	if blacklisted(asset.Options.BlacklistAuthorities, to.Id) {
		return chainerr.Preconditionf(ctx.Where, "recipient %s blacklisted for asset %s", to.Id, asset.Id)
	}

	if cs.Balance(e.op.From, e.op.Amount.AssetID) < e.op.Amount.Amount {
		return chainerr.Preconditionf(ctx.Where, "insufficient balance")
	}
	return nil
}

func (e *transferEval) DoApply(cs *state.Chainstate, ctx Context) ([]protocol.Operation, error) {
	if err := CollectFee(cs, e.op.From, e.op.Fee, protocol.TagTransfer, ctx, ctx.Where); err != nil {
		return nil, err
	}
	cs.AddBalance(e.op.From, e.op.Amount.AssetID, -e.op.Amount.Amount)
	cs.AddBalance(e.op.To, e.op.Amount.AssetID, e.op.Amount.Amount)
	return nil, nil
}

// whitelisted and blacklisted intersect the asset's whitelist/blacklist
// authorities with the account in question; membership is direct
// presence in the list, since custom-authority predicate evaluation is
// a named Non-goal (spec.md §1) — a real deployment's whitelist
// authorities are themselves accounts whose own blacklist/whitelist ops
// would populate this list, which is handled one layer up.
func whitelisted(authorities []objectdb.ID, account objectdb.ID) bool {
	if len(authorities) == 0 {
		return true
	}
	for _, a := range authorities {
		if a == account {
			return true
		}
	}
	return false
}

func blacklisted(authorities []objectdb.ID, account objectdb.ID) bool {
	for _, a := range authorities {
		if a == account {
			return true
		}
	}
	return false
}
