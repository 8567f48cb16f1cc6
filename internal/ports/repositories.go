package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

// OutboxEvent is the record enqueued inside the same database transaction
// as the state change it describes.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// CreditPendingParams moves released escrow money onto a freelancer's
// pending balance. The wallet-existence check happens inside the same
// transaction as the increment.
type CreditPendingParams struct {
	UserID     uuid.UUID
	Amount     domain.Amount
	RelatedID  *uuid.UUID
	Metadata   string
	OccurredAt time.Time
	Outbox     *OutboxEvent
}

// PendingTransferParams clears pending funds into the available balance.
type PendingTransferParams struct {
	UserID     uuid.UUID
	Amount     domain.Amount
	Metadata   string
	OccurredAt time.Time
	Outbox     *OutboxEvent
}

// PayoutDeductionParams withdraws available funds against a payout.
type PayoutDeductionParams struct {
	UserID     uuid.UUID
	Amount     domain.Amount
	PayoutID   uuid.UUID
	OccurredAt time.Time
	Outbox     *OutboxEvent
}

// WalletRepository owns all wallet row mutations. Every *Tx method runs a
// single database transaction: the balance check re-reads the row under a
// write lock so two concurrent calls cannot both pass the check.
type WalletRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Wallet, error)
	// Ensure creates the user's wallet on first use and returns the
	// existing one otherwise.
	Ensure(ctx context.Context, userID uuid.UUID, now time.Time) (domain.Wallet, error)
	CreditPendingTx(ctx context.Context, p CreditPendingParams) (domain.Wallet, error)
	MovePendingToAvailableTx(ctx context.Context, p PendingTransferParams) (domain.Wallet, error)
	PayoutDeductionTx(ctx context.Context, p PayoutDeductionParams) (domain.Wallet, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.WalletTransaction, error)
}

// EscrowDepositParams funds the escrow from the client wallet.
type EscrowDepositParams struct {
	ContractID uuid.UUID
	ClientID   uuid.UUID
	Amount     domain.Amount
	OccurredAt time.Time
	Outbox     *OutboxEvent
}

// EscrowReleaseParams moves held funds to the freelancer's pending balance.
type EscrowReleaseParams struct {
	ContractID  uuid.UUID
	Amount      domain.Amount
	Description string
	OccurredAt  time.Time
	Outbox      *OutboxEvent
}

// EscrowRefundParams returns held funds to the client's available balance.
type EscrowRefundParams struct {
	ContractID  uuid.UUID
	Amount      domain.Amount
	Description string
	OccurredAt  time.Time
	Outbox      *OutboxEvent
}

// EscrowMovement is the post-commit state of the rows a movement touched.
type EscrowMovement struct {
	Account domain.EscrowAccount
	Wallet  domain.Wallet
}

// EscrowRepository owns escrow account rows and their movement log. Each
// *Tx method is one atomic unit across the escrow account, the affected
// wallet, and both audit logs; a failure at any step aborts the whole
// operation with no partial writes.
type EscrowRepository interface {
	FindByContractID(ctx context.Context, contractID uuid.UUID) (domain.EscrowLookup, error)
	Open(ctx context.Context, account domain.EscrowAccount, outbox *OutboxEvent) error
	DepositTx(ctx context.Context, p EscrowDepositParams) (EscrowMovement, error)
	ReleaseTx(ctx context.Context, p EscrowReleaseParams) (EscrowMovement, error)
	RefundTx(ctx context.Context, p EscrowRefundParams) (EscrowMovement, error)
	ListTransactions(ctx context.Context, escrowAccountID uuid.UUID) ([]domain.EscrowTransaction, error)
}

// ContractRepository owns contract rows. Status updates are conditional on
// the expected prior status so concurrent transitions serialize through
// the store instead of an in-memory lock.
type ContractRepository interface {
	Create(ctx context.Context, c domain.Contract, outbox *OutboxEvent) error
	GetByID(ctx context.Context, contractID uuid.UUID) (domain.Contract, error)
	UpdateStatusTx(ctx context.Context, c domain.Contract, expected domain.ContractStatus, outbox *OutboxEvent) error
}

// MilestoneStatusParams persists a milestone transition conditionally on
// the expected prior status. AccrueTotalPaid, when positive, increments
// the parent contract's total_paid in the same transaction (payment path).
type MilestoneStatusParams struct {
	Milestone       domain.Milestone
	Expected        domain.MilestoneStatus
	AccrueTotalPaid domain.Amount
	Outbox          *OutboxEvent
}

// MilestonePayParams commits the milestone payment as one atomic unit: the
// escrow release to the freelancer's pending balance, the transition to
// PAID (conditional on Expected), the contract's total_paid accrual, and
// both outbox events. The milestone's amount is the released amount.
type MilestonePayParams struct {
	Milestone     domain.Milestone
	Expected      domain.MilestoneStatus
	Description   string
	OccurredAt    time.Time
	ReleaseOutbox *OutboxEvent
	StatusOutbox  *OutboxEvent
}

// MilestoneRepository owns milestone rows, including sequence assignment
// (one more than the highest sequence ever issued for the contract,
// computed inside the create transaction so deleted numbers are never
// reused) and the handshake delete.
type MilestoneRepository interface {
	CreateTx(ctx context.Context, m domain.Milestone, outbox *OutboxEvent) (domain.Milestone, error)
	GetByID(ctx context.Context, milestoneID uuid.UUID) (domain.Milestone, error)
	ListByContractID(ctx context.Context, contractID uuid.UUID) ([]domain.Milestone, error)
	UpdateFields(ctx context.Context, m domain.Milestone) error
	UpdateStatusTx(ctx context.Context, p MilestoneStatusParams) error
	PayTx(ctx context.Context, p MilestonePayParams) (EscrowMovement, error)
	MarkDeletionRequested(ctx context.Context, milestoneID uuid.UUID, at time.Time) error
	DeleteTx(ctx context.Context, milestoneID uuid.UUID, outbox *OutboxEvent) error
}

// UserRepository is the read-only projection of platform users this
// service needs for eligibility checks; the user aggregate is owned by the
// authentication service.
type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (domain.WalletUser, error)
}

// IdempotencyRecord mirrors one reserved or completed idempotent request.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

// IdempotencyRepository backs the reserve/replay/complete protocol guarding
// every money-moving operation. Reserve succeeds for a fresh key, for an
// expired record, and for a live same-hash reservation that never completed
// (the retry takes it over); a live reservation with a different hash or a
// completed record returns domain.ErrConflict.
type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, now, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}

// OutboxRecord is a claimed outbox row as seen by the publisher worker.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	FirstSeenAt    time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository stores domain events written transactionally with state
// changes and hands them to the worker under short-lived claims.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
