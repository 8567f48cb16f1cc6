package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EscrowStatusActive    = "ACTIVE"
	EscrowStatusCompleted = "COMPLETED"
	EscrowStatusCanceled  = "CANCELED"
)

// EscrowAccount is the per-contract holding account. At all times
// heldAmount equals initialAmount plus deposits minus releases and refunds
// over the account's transaction history, and is never negative.
type EscrowAccount struct {
	EscrowAccountID uuid.UUID
	ContractID      uuid.UUID
	ClientID        uuid.UUID
	FreelancerID    uuid.UUID
	HeldAmount      Amount
	InitialAmount   Amount
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const (
	EscrowTxDeposit = "DEPOSIT"
	EscrowTxRelease = "RELEASE"
	EscrowTxRefund  = "REFUND"
)

// EscrowTransaction is the append-only movement record for an escrow
// account. Source/destination wallets are optional because refunds and
// releases touch only one side.
type EscrowTransaction struct {
	TransactionID       uuid.UUID
	EscrowAccountID     uuid.UUID
	Amount              Amount
	Type                string
	SourceWalletID      *uuid.UUID
	DestinationWalletID *uuid.UUID
	Description         string
	CreatedAt           time.Time
}

// EscrowLookup makes the uninitialized case explicit so callers cannot
// forget it: Present is false until the contract has an escrow account.
type EscrowLookup struct {
	Present bool
	Account EscrowAccount
}
