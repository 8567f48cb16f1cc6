package postgres

import (
	"gorm.io/gorm"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/ports"
)

// Repositories bundles every Postgres-backed port implementation behind one
// constructor so the composition root wires a single handle.
type Repositories struct {
	Wallets     ports.WalletRepository
	Escrows     ports.EscrowRepository
	Contracts   ports.ContractRepository
	Milestones  ports.MilestoneRepository
	Users       ports.UserRepository
	Idempotency ports.IdempotencyRepository
	Outbox      ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Wallets:     &walletRepository{db: db},
		Escrows:     &escrowRepository{db: db},
		Contracts:   &contractRepository{db: db},
		Milestones:  &milestoneRepository{db: db},
		Users:       &userRepository{db: db},
		Idempotency: &idempotencyRepository{db: db},
		Outbox:      &outboxRepository{db: db},
	}
}
