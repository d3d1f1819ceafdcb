package evaluator

import (
	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func init() {
	Register(protocol.TagAccountCreate, func(op protocol.Operation) (Evaluator, error) {
		return &accountCreateEval{op: op.(protocol.AccountCreate)}, nil
	})
	Register(protocol.TagAccountUpdate, func(op protocol.Operation) (Evaluator, error) {
		return &accountUpdateEval{op: op.(protocol.AccountUpdate)}, nil
	})
}

type accountCreateEval struct {
	op protocol.AccountCreate
}

func (e *accountCreateEval) DoEvaluate(cs *state.Chainstate, ctx Context) error {
	if _, ok := cs.Accounts.Find(e.op.Registrar); !ok {
		return chainerr.Preconditionf(ctx.Where, "unknown registrar %s", e.op.Registrar)
	}
	if !e.op.Referrer.Zero() {
		if _, ok := cs.Accounts.Find(e.op.Referrer); !ok {
			return chainerr.Preconditionf(ctx.Where, "unknown referrer %s", e.op.Referrer)
		}
	}
	if len(cs.AccountsByName.Lookup(e.op.Name)) > 0 {
		return chainerr.Preconditionf(ctx.Where, "account name %q already taken", e.op.Name)
	}
	return nil
}

func (e *accountCreateEval) DoApply(cs *state.Chainstate, ctx Context) ([]protocol.Operation, error) {
	if err := CollectFee(cs, e.op.Registrar, e.op.Fee, protocol.TagAccountCreate, ctx, ctx.Where); err != nil {
		return nil, err
	}

	lifetimeReferrer := e.op.Referrer
	if !e.op.Referrer.Zero() {
		if referrerAcc, ok := cs.Accounts.Find(e.op.Referrer); ok && !referrerAcc.Options.LifetimeReferrer.Zero() {
			lifetimeReferrer = referrerAcc.Options.LifetimeReferrer
		}
	}

	opts := e.op.Options
	opts.Registrar = e.op.Registrar
	opts.Referrer = e.op.Referrer
	opts.LifetimeReferrer = lifetimeReferrer
	opts.ReferrerRewardPercentage = e.op.ReferrerPercent

	_, err := cs.CreateAccount(func(a *state.Account) {
		a.Name = e.op.Name
		a.Owner = e.op.Owner
		a.Active = e.op.Active
		a.Options = opts
	})
	return nil, err
}

type accountUpdateEval struct {
	op protocol.AccountUpdate
}

func (e *accountUpdateEval) DoEvaluate(cs *state.Chainstate, ctx Context) error {
	if _, ok := cs.Accounts.Find(e.op.Account); !ok {
		return chainerr.Preconditionf(ctx.Where, "unknown account %s", e.op.Account)
	}
	return nil
}

func (e *accountUpdateEval) DoApply(cs *state.Chainstate, ctx Context) ([]protocol.Operation, error) {
	if err := CollectFee(cs, e.op.Account, e.op.Fee, protocol.TagAccountUpdate, ctx, ctx.Where); err != nil {
		return nil, err
	}
	acc, _ := cs.Accounts.Find(e.op.Account)
	objectdb.Modify(cs.DB, cs.Accounts, acc, func(a *state.Account) {
		if e.op.Owner != nil {
			a.Owner = *e.op.Owner
		}
		if e.op.Active != nil {
			a.Active = *e.op.Active
		}
		if e.op.Options != nil {
			a.Options = *e.op.Options
		}
	})
	return nil, nil
}
