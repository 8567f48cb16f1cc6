package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a contract, milestone, wallet or escrow
	// account does not exist. Keeping it in domain lets adapters map it
	// consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized signals that the caller is not the required party for
	// the operation (wrong client/freelancer, or neither).
	ErrUnauthorized = errors.New("caller is not a party to this operation")
	// ErrInsufficientFunds is returned when a balance or held-amount check
	// fails before mutation. The enclosing transaction rolls back in full.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidStateTransition is the sentinel every StateTransitionError
	// unwraps to; use errors.Is against this, errors.As for the states.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrNoDeletionRequest guards the two-party milestone deletion
	// handshake: accept was invoked without a prior request.
	ErrNoDeletionRequest = errors.New("no deletion request on milestone")
	// ErrContractNotActionable rejects milestone mutations whose parent
	// contract is no longer in an actionable status.
	ErrContractNotActionable = errors.New("contract is not in an actionable status")

	ErrInvalidInput        = errors.New("invalid input")
	ErrWalletInactive      = errors.New("wallet owner is not an active freelancer")
	ErrEscrowClosed        = errors.New("escrow account is closed")
	ErrConflict            = errors.New("conflict")
	ErrIdempotencyRequired = errors.New("idempotency key required")
	ErrIdempotencyConflict = errors.New("idempotency conflict")
)

// StateTransitionError names both states of a rejected transition so the
// caller-facing message can identify exactly what was attempted.
type StateTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s transition from %s to %s is not allowed", e.Entity, e.From, e.To)
}

func (e *StateTransitionError) Unwrap() error { return ErrInvalidStateTransition }

func NewTransitionError(entity, from, to string) error {
	return &StateTransitionError{Entity: entity, From: from, To: to}
}
