// Package evaluator implements spec.md §4.2's per-operation
// validate/do_evaluate/do_apply contract: Operation.Validate() (already
// pure per pkg/protocol), then Evaluator.DoEvaluate (reads chain state,
// checks preconditions) and Evaluator.DoApply (writes state, returns
// any virtual operations produced). Grounded on the teacher's
// transaction.Validate dispatch (pkg/app/core/transaction/types.go)
// generalized from a 2-case switch to a registry keyed by wire tag.
package evaluator

import (
	"github.com/hyperlicked/chaincore/pkg/chainerr"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

// Context carries the per-transaction-application data an evaluator
// needs beyond the chain state itself: the current fee schedule, wall
// time (for expiration/feed-lifetime checks), and which operation index
// this is, for error attribution.
type Context struct {
	Schedule *protocol.Schedule
	NowUnix  int64
	Where    chainerr.OpIndex
}

// Evaluator is implemented once per operation type. DoEvaluate must not
// mutate cs; DoApply performs the writes and returns any virtual
// operations the application produced (fills, margin calls, etc.), for
// the applied-operations trace spec.md §6 describes.
type Evaluator interface {
	DoEvaluate(cs *state.Chainstate, ctx Context) error
	DoApply(cs *state.Chainstate, ctx Context) ([]protocol.Operation, error)
}

// Factory builds the Evaluator for a concrete operation value.
type Factory func(op protocol.Operation) (Evaluator, error)

var registry = map[protocol.Tag]Factory{}

// Register wires a Factory for tag. Called from each evaluator file's
// init, mirroring the teacher's pattern of one file per concern
// registering itself rather than a central switch statement.
func Register(tag protocol.Tag, f Factory) { registry[tag] = f }

// Lookup returns the Evaluator for op, or a PreconditionError if the
// tag has no registered evaluator (every non-virtual tag on the wire
// must be registered; an unregistered tag indicates a node running
// behind a hardfork it doesn't understand yet).
func Lookup(op protocol.Operation, where chainerr.OpIndex) (Evaluator, error) {
	f, ok := registry[op.Tag()]
	if !ok {
		return nil, chainerr.Preconditionf(where, "no evaluator registered for operation tag %d", op.Tag())
	}
	return f(op)
}

// Apply runs the full validate/evaluate/apply sequence for one
// operation against cs, returning any virtual operations it produced.
func Apply(cs *state.Chainstate, op protocol.Operation, ctx Context) ([]protocol.Operation, error) {
	if op.IsVirtual() {
		return nil, chainerr.Validationf(ctx.Where, "virtual operation %d cannot be submitted", op.Tag())
	}
	if err := op.Validate(); err != nil {
		return nil, chainerr.Validationf(ctx.Where, "%s", err)
	}
	ev, err := Lookup(op, ctx.Where)
	if err != nil {
		return nil, err
	}
	if err := ev.DoEvaluate(cs, ctx); err != nil {
		return nil, err
	}
	return ev.DoApply(cs, ctx)
}
