package protocol

import "errors"

// Error taxonomy surfaced verbatim to callers. Every failure aborts the
// operation with zero state mutation; the core never retries internally.
var (
	ErrNotFound          = errors.New("game not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrOutOfBounds       = errors.New("out of bounds")
	ErrAlreadyDone       = errors.New("already done")
	ErrProofInvalid      = errors.New("proof invalid")
	ErrInsufficientStake = errors.New("insufficient stake")
	ErrEscrowFailed      = errors.New("escrow failed")
	ErrPayoutFailed      = errors.New("payout failed")
	ErrThresholdNotMet   = errors.New("threshold not met")
	ErrTimeoutNotReached = errors.New("timeout not reached")
	ErrNoTimeoutParty    = errors.New("no timeout party")
)
