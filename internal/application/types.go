package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/ports"
)

type Config struct {
	ServiceName     string
	IdempotencyTTL  time.Duration
	BalanceCacheTTL time.Duration
}

// Actor is the pre-authenticated caller identity handed in by the HTTP or
// gRPC adapter. The core trusts these fields; it never parses tokens.
type Actor struct {
	SubjectID      uuid.UUID
	Role           domain.Role
	RequestID      string
	IdempotencyKey string
}

type CreateContractInput struct {
	FreelancerID uuid.UUID
	JobID        uuid.UUID
	Amount       domain.Amount
	Currency     string
}

type CreateMilestoneInput struct {
	ContractID  uuid.UUID
	Title       string
	Description string
	Amount      domain.Amount
	Currency    string
	DueDate     *time.Time
}

type UpdateMilestoneInput struct {
	MilestoneID uuid.UUID
	Title       string
	Description string
	Amount      domain.Amount
	DueDate     *time.Time
}

// MilestoneTransitionInput drives every milestone status operation.
// AllowUnchecked bypasses the transition table and is honored for admin
// actors only; it is a per-call parameter, never ambient state.
type MilestoneTransitionInput struct {
	MilestoneID    uuid.UUID
	AllowUnchecked bool
}

type DepositInput struct {
	ContractID uuid.UUID
	Amount     domain.Amount
}

type ReleaseInput struct {
	ContractID  uuid.UUID
	Amount      domain.Amount
	Description string
}

type RefundInput struct {
	ContractID  uuid.UUID
	Amount      domain.Amount
	Description string
}

type PendingTransferInput struct {
	UserID uuid.UUID
	Amount domain.Amount
}

type PayoutDeductionInput struct {
	UserID   uuid.UUID
	Amount   domain.Amount
	PayoutID uuid.UUID
}

// WalletBalance is the read projection of both balances, minor units.
// Adapters convert to major units at the boundary.
type WalletBalance struct {
	UserID    uuid.UUID
	Available domain.Amount
	Pending   domain.Amount
}

func (b WalletBalance) Total() domain.Amount { return b.Available + b.Pending }

// EscrowStatus is the read projection of an escrow account; Present is
// false while the contract has no account yet.
type EscrowStatus struct {
	Present    bool
	ContractID uuid.UUID
	Held       domain.Amount
	Initial    domain.Amount
	Status     string
}

// Service hosts the wallet ledger, the escrow engine, and both state
// machines behind one dependency set. Components stay separated by file
// and by the repositories they are allowed to touch.
type Service struct {
	cfg         Config
	wallets     ports.WalletRepository
	escrows     ports.EscrowRepository
	contracts   ports.ContractRepository
	milestones  ports.MilestoneRepository
	users       ports.UserRepository
	idempotency ports.IdempotencyRepository
	balances    ports.BalanceCache
	access      ports.AccessPolicy
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Wallets     ports.WalletRepository
	Escrows     ports.EscrowRepository
	Contracts   ports.ContractRepository
	Milestones  ports.MilestoneRepository
	Users       ports.UserRepository
	Idempotency ports.IdempotencyRepository
	Balances    ports.BalanceCache
	Access      ports.AccessPolicy
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "M15-Contract-Escrow-Service"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.BalanceCacheTTL <= 0 {
		cfg.BalanceCacheTTL = 30 * time.Second
	}
	access := deps.Access
	if access == nil {
		access = PartyAccessPolicy{}
	}
	return &Service{
		cfg:         cfg,
		wallets:     deps.Wallets,
		escrows:     deps.Escrows,
		contracts:   deps.Contracts,
		milestones:  deps.Milestones,
		users:       deps.Users,
		idempotency: deps.Idempotency,
		balances:    deps.Balances,
		access:      access,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}
