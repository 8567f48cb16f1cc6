package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

// WalletBalanceView is the cached wallet read projection, minor units.
type WalletBalanceView struct {
	Available domain.Amount
	Pending   domain.Amount
}

// EscrowBalanceView is the cached escrow read projection, minor units.
type EscrowBalanceView struct {
	Held    domain.Amount
	Initial domain.Amount
}

// BalanceCache fronts the balance read paths. Misses return nil views, not
// errors; every ledger mutation invalidates the affected keys.
type BalanceCache interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*WalletBalanceView, error)
	SetWallet(ctx context.Context, userID uuid.UUID, view WalletBalanceView) error
	InvalidateWallet(ctx context.Context, userID uuid.UUID) error
	GetEscrow(ctx context.Context, contractID uuid.UUID) (*EscrowBalanceView, error)
	SetEscrow(ctx context.Context, contractID uuid.UUID, view EscrowBalanceView) error
	InvalidateEscrow(ctx context.Context, contractID uuid.UUID) error
}
