// Package chainerr defines the four error categories of spec.md §7, each
// satisfying errors.As so evaluators and the block applier can classify
// a failure without string matching. Grounded on the teacher's
// util/log.go error-wrapping convention, generalized from a flat
// fmt.Errorf style to a typed taxonomy the block applier's propagation
// policy (§7) needs to distinguish category 4 (halt the node) from 1-3
// (roll back the transaction).
package chainerr

import "fmt"

// OpIndex identifies which operation within a transaction failed, for
// the structured error spec.md §7 requires on rejection.
type OpIndex struct {
	TxIndex int
	OpIndex int
}

func (i OpIndex) String() string { return fmt.Sprintf("tx[%d].op[%d]", i.TxIndex, i.OpIndex) }

// ValidationError is category 1: purely structural, checked before any
// state access (negative fees, zero-asset prices, self-transfer).
type ValidationError struct {
	Where OpIndex
	Msg   string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("validation failure at %s: %s", e.Where, e.Msg) }

// PreconditionError is category 2: structurally valid but the current
// state forbids it (insufficient balance, unknown id, authority
// insufficient, transfer-restricted, bitasset in settlement).
type PreconditionError struct {
	Where OpIndex
	Msg   string
}

func (e *PreconditionError) Error() string { return fmt.Sprintf("precondition failure at %s: %s", e.Where, e.Msg) }

// PolicyError is category 3: a specific business rule rejected the
// operation (margin call would not fully cover, fill-or-kill partially
// filled, expiration in the past, feed out of range).
type PolicyError struct {
	Where OpIndex
	Msg   string
}

func (e *PolicyError) Error() string { return fmt.Sprintf("policy failure at %s: %s", e.Where, e.Msg) }

// InvariantViolation is category 4: an assertion over computed
// quantities failed (e.g. negative supply would result). These signal
// bugs in the state machine itself; callers must halt rather than
// attempt to continue, per spec.md §7.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return fmt.Sprintf("invariant violation: %s", e.Msg) }

// Validationf, Preconditionf, Policyf and Invariantf build the
// corresponding error with a formatted message, mirroring fmt.Errorf's
// call shape.
func Validationf(where OpIndex, format string, args ...any) error {
	return &ValidationError{Where: where, Msg: fmt.Sprintf(format, args...)}
}
func Preconditionf(where OpIndex, format string, args ...any) error {
	return &PreconditionError{Where: where, Msg: fmt.Sprintf(format, args...)}
}
func Policyf(where OpIndex, format string, args ...any) error {
	return &PolicyError{Where: where, Msg: fmt.Sprintf(format, args...)}
}
func Invariantf(format string, args ...any) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}

// Halts reports whether err is a category-4 InvariantViolation, which
// per spec.md §7 must halt the node rather than roll back and continue.
func Halts(err error) bool {
	_, ok := err.(*InvariantViolation)
	return ok
}
