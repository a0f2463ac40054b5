package errors

import (
	stderrors "errors"
	"fmt"
)

// Core error taxonomy. Policy per kind:
//   - InvalidSignature, InvalidPayload: reject, no retry.
//   - NonceGap, NonceReuse: reject; sender must resubmit in order.
//   - InsufficientFunds: reject at state apply.
//   - Duplicate: reject at submission; exact duplicates are idempotent.
//   - Timeout: proposal marked Rejected and removed from the pool.
//   - Io, Serialization: retry at a higher layer.
var (
	ErrInvalidSignature  = stderrors.New("invalid signature")
	ErrInvalidPayload    = stderrors.New("invalid payload")
	ErrNonceGap          = stderrors.New("nonce gap: future nonce")
	ErrNonceReuse        = stderrors.New("nonce reuse: past nonce")
	ErrInsufficientFunds = stderrors.New("insufficient funds")
	ErrDuplicate         = stderrors.New("duplicate transaction")
	ErrTimeout           = stderrors.New("consensus phase timed out")
	ErrNotFound          = stderrors.New("not found")
)

// EquivocationError reports a voter casting contradictory votes for the same
// proposal and phase. The prior vote stands; the event is slashable.
type EquivocationError struct {
	ProposalID string
	Phase      string
	Voter      string
	Prior      string
	Conflict   string
}

func (e *EquivocationError) Error() string {
	return fmt.Sprintf("equivocation: %s voted %s then %s on %s (phase %s)",
		e.Voter, e.Prior, e.Conflict, e.ProposalID, e.Phase)
}

// IsEquivocation reports whether err is an equivocation event.
func IsEquivocation(err error) bool {
	var eq *EquivocationError
	return stderrors.As(err, &eq)
}
