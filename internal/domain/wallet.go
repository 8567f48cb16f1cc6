package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's spendable and pending balances in minor units.
// One wallet per user, created lazily on the first financial event, and
// mutated only through the wallet ledger.
type Wallet struct {
	WalletID         uuid.UUID
	UserID           uuid.UUID
	AvailableBalance Amount
	PendingBalance   Amount
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const (
	WalletTxDeposit    = "DEPOSIT"
	WalletTxWithdrawal = "WITHDRAWAL"
	WalletTxHold       = "HOLD"
	WalletTxRelease    = "RELEASE"
	WalletTxAdjustment = "ADJUSTMENT"
)

// WalletTransaction is the append-only audit row written in the same atomic
// unit as every wallet balance change.
type WalletTransaction struct {
	TransactionID uuid.UUID
	WalletID      uuid.UUID
	Amount        Amount
	Type          string
	RelatedID     *uuid.UUID
	Metadata      string
	CreatedAt     time.Time
}

// WalletUser is the slim projection of a platform user the ledger needs for
// eligibility checks. The full user aggregate is owned elsewhere.
type WalletUser struct {
	UserID   uuid.UUID
	Role     Role
	IsActive bool
}
