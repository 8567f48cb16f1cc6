// Package memory backs every repository port with mutex-guarded maps.
// It exists for unit tests and local runs without Postgres; one store-wide
// lock stands in for the database transaction, so multi-row operations are
// atomic the same way the SQL implementations are.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/ports"
)

type Store struct {
	mu           sync.Mutex
	users        map[uuid.UUID]domain.WalletUser
	wallets      map[uuid.UUID]domain.Wallet // keyed by user id
	walletTx     []domain.WalletTransaction
	escrows      map[uuid.UUID]domain.EscrowAccount // keyed by contract id
	escrowTx     []domain.EscrowTransaction
	contracts    map[uuid.UUID]domain.Contract
	milestones   map[uuid.UUID]domain.Milestone
	milestoneSeq map[uuid.UUID]int // per-contract high-water mark, survives deletes
	idempotency  map[string]ports.IdempotencyRecord
	outbox       []ports.OutboxRecord
}

func NewStore() *Store {
	return &Store{
		users:        map[uuid.UUID]domain.WalletUser{},
		wallets:      map[uuid.UUID]domain.Wallet{},
		escrows:      map[uuid.UUID]domain.EscrowAccount{},
		contracts:    map[uuid.UUID]domain.Contract{},
		milestones:   map[uuid.UUID]domain.Milestone{},
		milestoneSeq: map[uuid.UUID]int{},
		idempotency:  map[string]ports.IdempotencyRecord{},
	}
}

// SeedUser installs a user row in the read projection.
func (s *Store) SeedUser(u domain.WalletUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UserID] = u
}

// SeedWallet installs a wallet with the given balances.
func (s *Store) SeedWallet(userID uuid.UUID, available, pending domain.Amount) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := domain.Wallet{
		WalletID:         uuid.New(),
		UserID:           userID,
		AvailableBalance: available,
		PendingBalance:   pending,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	s.wallets[userID] = w
	return w.WalletID
}

// WalletSnapshot returns the current wallet row for assertions.
func (s *Store) WalletSnapshot(userID uuid.UUID) (domain.Wallet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	return w, ok
}

// WalletTransactions returns a copy of the audit log.
func (s *Store) WalletTransactions() []domain.WalletTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.WalletTransaction(nil), s.walletTx...)
}

// EscrowTransactions returns a copy of the escrow movement log.
func (s *Store) EscrowTransactions() []domain.EscrowTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.EscrowTransaction(nil), s.escrowTx...)
}

// OutboxRecords returns a copy of everything enqueued so far.
func (s *Store) OutboxRecords() []ports.OutboxRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.OutboxRecord(nil), s.outbox...)
}

func (s *Store) Wallets() ports.WalletRepository { return walletRepo{s} }
func (s *Store) Escrows() ports.EscrowRepository { return escrowRepo{s} }
func (s *Store) Contracts() ports.ContractRepository { return contractRepo{s} }
func (s *Store) Milestones() ports.MilestoneRepository { return milestoneRepo{s} }
func (s *Store) Users() ports.UserRepository { return userRepo{s} }
func (s *Store) Idempotency() ports.IdempotencyRepository { return idempotencyRepo{s} }
func (s *Store) Outbox() ports.OutboxRepository { return outboxRepo{s} }

func (s *Store) enqueueLocked(event *ports.OutboxEvent) {
	if event == nil {
		return
	}
	s.outbox = append(s.outbox, ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      append([]byte(nil), event.Payload...),
		CreatedAt:    event.OccurredAt,
		FirstSeenAt:  event.OccurredAt,
	})
}

type walletRepo struct{ s *Store }

func (r walletRepo) GetByUserID(_ context.Context, userID uuid.UUID) (domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[userID]
	if !ok {
		return domain.Wallet{}, domain.ErrNotFound
	}
	return w, nil
}

func (r walletRepo) Ensure(_ context.Context, userID uuid.UUID, now time.Time) (domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w, ok := r.s.wallets[userID]; ok {
		return w, nil
	}
	w := domain.Wallet{WalletID: uuid.New(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	r.s.wallets[userID] = w
	return w, nil
}

func (r walletRepo) CreditPendingTx(_ context.Context, p ports.CreditPendingParams) (domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[p.UserID]
	if !ok {
		return domain.Wallet{}, domain.ErrNotFound
	}
	w.PendingBalance += p.Amount
	w.UpdatedAt = p.OccurredAt
	r.s.wallets[p.UserID] = w
	r.s.walletTx = append(r.s.walletTx, domain.WalletTransaction{
		TransactionID: uuid.New(),
		WalletID:      w.WalletID,
		Amount:        p.Amount,
		Type:          domain.WalletTxRelease,
		RelatedID:     p.RelatedID,
		Metadata:      p.Metadata,
		CreatedAt:     p.OccurredAt,
	})
	r.s.enqueueLocked(p.Outbox)
	return w, nil
}

func (r walletRepo) MovePendingToAvailableTx(_ context.Context, p ports.PendingTransferParams) (domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[p.UserID]
	if !ok {
		return domain.Wallet{}, domain.ErrNotFound
	}
	if w.PendingBalance < p.Amount {
		return domain.Wallet{}, domain.ErrInsufficientFunds
	}
	w.PendingBalance -= p.Amount
	w.AvailableBalance += p.Amount
	w.UpdatedAt = p.OccurredAt
	r.s.wallets[p.UserID] = w
	r.s.walletTx = append(r.s.walletTx, domain.WalletTransaction{
		TransactionID: uuid.New(),
		WalletID:      w.WalletID,
		Amount:        p.Amount,
		Type:          domain.WalletTxAdjustment,
		Metadata:      p.Metadata,
		CreatedAt:     p.OccurredAt,
	})
	r.s.enqueueLocked(p.Outbox)
	return w, nil
}

func (r walletRepo) PayoutDeductionTx(_ context.Context, p ports.PayoutDeductionParams) (domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[p.UserID]
	if !ok {
		return domain.Wallet{}, domain.ErrNotFound
	}
	if w.AvailableBalance < p.Amount {
		return domain.Wallet{}, domain.ErrInsufficientFunds
	}
	w.AvailableBalance -= p.Amount
	w.UpdatedAt = p.OccurredAt
	r.s.wallets[p.UserID] = w
	payoutID := p.PayoutID
	r.s.walletTx = append(r.s.walletTx, domain.WalletTransaction{
		TransactionID: uuid.New(),
		WalletID:      w.WalletID,
		Amount:        p.Amount,
		Type:          domain.WalletTxWithdrawal,
		RelatedID:     &payoutID,
		Metadata:      "payout deduction",
		CreatedAt:     p.OccurredAt,
	})
	r.s.enqueueLocked(p.Outbox)
	return w, nil
}

func (r walletRepo) ListTransactions(_ context.Context, walletID uuid.UUID, limit int) ([]domain.WalletTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.WalletTransaction, 0)
	for _, tx := range r.s.walletTx {
		if tx.WalletID == walletID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type escrowRepo struct{ s *Store }

func (r escrowRepo) FindByContractID(_ context.Context, contractID uuid.UUID) (domain.EscrowLookup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.escrows[contractID]
	if !ok {
		return domain.EscrowLookup{Present: false}, nil
	}
	return domain.EscrowLookup{Present: true, Account: account}, nil
}

func (r escrowRepo) Open(_ context.Context, account domain.EscrowAccount, outbox *ports.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.escrows[account.ContractID]; ok {
		return domain.ErrConflict
	}
	r.s.escrows[account.ContractID] = account
	r.s.enqueueLocked(outbox)
	return nil
}

func (r escrowRepo) DepositTx(_ context.Context, p ports.EscrowDepositParams) (ports.EscrowMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.escrows[p.ContractID]
	if !ok {
		return ports.EscrowMovement{}, domain.ErrNotFound
	}
	if account.Status != domain.EscrowStatusActive {
		return ports.EscrowMovement{}, domain.ErrEscrowClosed
	}
	wallet, ok := r.s.wallets[p.ClientID]
	if !ok {
		return ports.EscrowMovement{}, domain.ErrNotFound
	}
	if wallet.AvailableBalance < p.Amount {
		return ports.EscrowMovement{}, domain.ErrInsufficientFunds
	}

	wallet.AvailableBalance -= p.Amount
	wallet.UpdatedAt = p.OccurredAt
	account.HeldAmount += p.Amount
	account.UpdatedAt = p.OccurredAt
	r.s.wallets[p.ClientID] = wallet
	r.s.escrows[p.ContractID] = account

	sourceWallet := wallet.WalletID
	r.s.escrowTx = append(r.s.escrowTx, domain.EscrowTransaction{
		TransactionID:   uuid.New(),
		EscrowAccountID: account.EscrowAccountID,
		Amount:          p.Amount,
		Type:            domain.EscrowTxDeposit,
		SourceWalletID:  &sourceWallet,
		Description:     "escrow deposit",
		CreatedAt:       p.OccurredAt,
	})
	relatedID := account.EscrowAccountID
	r.s.walletTx = append(r.s.walletTx, domain.WalletTransaction{
		TransactionID: uuid.New(),
		WalletID:      wallet.WalletID,
		Amount:        p.Amount,
		Type:          domain.WalletTxHold,
		RelatedID:     &relatedID,
		Metadata:      "escrow deposit hold",
		CreatedAt:     p.OccurredAt,
	})
	r.s.enqueueLocked(p.Outbox)
	return ports.EscrowMovement{Account: account, Wallet: wallet}, nil
}

func (r escrowRepo) ReleaseTx(_ context.Context, p ports.EscrowReleaseParams) (ports.EscrowMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.escrows[p.ContractID]
	if !ok {
		return ports.EscrowMovement{}, domain.ErrNotFound
	}
	if account.Status != domain.EscrowStatusActive {
		return ports.EscrowMovement{}, domain.ErrEscrowClosed
	}
	if account.HeldAmount < p.Amount {
		return ports.EscrowMovement{}, domain.ErrInsufficientFunds
	}
	wallet, ok := r.s.wallets[account.FreelancerID]
	if !ok {
		return ports.EscrowMovement{}, domain.ErrNotFound
	}

	account.HeldAmount -= p.Amount
	account.UpdatedAt = p.OccurredAt
	wallet.PendingBalance += p.Amount
	wallet.UpdatedAt = p.OccurredAt
	r.s.escrows[p.ContractID] = account
	r.s.wallets[account.FreelancerID] = wallet

	description := p.Description
	if description == "" {
		description = "escrow release"
	}
	destWallet := wallet.WalletID
	r.s.escrowTx = append(r.s.escrowTx, domain.EscrowTransaction{
		TransactionID:       uuid.New(),
		EscrowAccountID:     account.EscrowAccountID,
		Amount:              p.Amount,
		Type:                domain.EscrowTxRelease,
		DestinationWalletID: &destWallet,
		Description:         description,
		CreatedAt:           p.OccurredAt,
	})
	relatedID := account.EscrowAccountID
	r.s.walletTx = append(r.s.walletTx, domain.WalletTransaction{
		TransactionID: uuid.New(),
		WalletID:      wallet.WalletID,
		Amount:        p.Amount,
		Type:          domain.WalletTxRelease,
		RelatedID:     &relatedID,
		Metadata:      description,
		CreatedAt:     p.OccurredAt,
	})
	r.s.enqueueLocked(p.Outbox)
	return ports.EscrowMovement{Account: account, Wallet: wallet}, nil
}

func (r escrowRepo) RefundTx(_ context.Context, p ports.EscrowRefundParams) (ports.EscrowMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.escrows[p.ContractID]
	if !ok {
		return ports.EscrowMovement{}, domain.ErrNotFound
	}
	if account.Status != domain.EscrowStatusActive {
		return ports.EscrowMovement{}, domain.ErrEscrowClosed
	}
	if account.HeldAmount < p.Amount {
		return ports.EscrowMovement{}, domain.ErrInsufficientFunds
	}
	wallet, ok := r.s.wallets[account.ClientID]
	if !ok {
		return ports.EscrowMovement{}, domain.ErrNotFound
	}

	account.HeldAmount -= p.Amount
	account.UpdatedAt = p.OccurredAt
	wallet.AvailableBalance += p.Amount
	wallet.UpdatedAt = p.OccurredAt
	r.s.escrows[p.ContractID] = account
	r.s.wallets[account.ClientID] = wallet

	description := p.Description
	if description == "" {
		description = "escrow refund"
	}
	destWallet := wallet.WalletID
	r.s.escrowTx = append(r.s.escrowTx, domain.EscrowTransaction{
		TransactionID:       uuid.New(),
		EscrowAccountID:     account.EscrowAccountID,
		Amount:              p.Amount,
		Type:                domain.EscrowTxRefund,
		DestinationWalletID: &destWallet,
		Description:         description,
		CreatedAt:           p.OccurredAt,
	})
	relatedID := account.EscrowAccountID
	r.s.walletTx = append(r.s.walletTx, domain.WalletTransaction{
		TransactionID: uuid.New(),
		WalletID:      wallet.WalletID,
		Amount:        p.Amount,
		Type:          domain.WalletTxAdjustment,
		RelatedID:     &relatedID,
		Metadata:      description,
		CreatedAt:     p.OccurredAt,
	})
	r.s.enqueueLocked(p.Outbox)
	return ports.EscrowMovement{Account: account, Wallet: wallet}, nil
}

func (r escrowRepo) ListTransactions(_ context.Context, escrowAccountID uuid.UUID) ([]domain.EscrowTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.EscrowTransaction, 0)
	for _, tx := range r.s.escrowTx {
		if tx.EscrowAccountID == escrowAccountID {
			out = append(out, tx)
		}
	}
	return out, nil
}

type contractRepo struct{ s *Store }

func (r contractRepo) Create(_ context.Context, c domain.Contract, outbox *ports.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.contracts[c.ContractID]; ok {
		return domain.ErrConflict
	}
	r.s.contracts[c.ContractID] = c
	r.s.enqueueLocked(outbox)
	return nil
}

func (r contractRepo) GetByID(_ context.Context, contractID uuid.UUID) (domain.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contracts[contractID]
	if !ok {
		return domain.Contract{}, domain.ErrNotFound
	}
	return c, nil
}

func (r contractRepo) UpdateStatusTx(_ context.Context, c domain.Contract, expected domain.ContractStatus, outbox *ports.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.contracts[c.ContractID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != expected {
		return domain.ErrConflict
	}
	r.s.contracts[c.ContractID] = c
	r.s.enqueueLocked(outbox)
	return nil
}

type milestoneRepo struct{ s *Store }

func (r milestoneRepo) CreateTx(_ context.Context, m domain.Milestone, outbox *ports.OutboxEvent) (domain.Milestone, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.contracts[m.ContractID]; !ok {
		return domain.Milestone{}, domain.ErrNotFound
	}
	m.Sequence = r.s.milestoneSeq[m.ContractID] + 1
	r.s.milestoneSeq[m.ContractID] = m.Sequence
	r.s.milestones[m.MilestoneID] = m
	r.s.enqueueLocked(outbox)
	return m, nil
}

func (r milestoneRepo) GetByID(_ context.Context, milestoneID uuid.UUID) (domain.Milestone, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.milestones[milestoneID]
	if !ok {
		return domain.Milestone{}, domain.ErrNotFound
	}
	return m, nil
}

func (r milestoneRepo) ListByContractID(_ context.Context, contractID uuid.UUID) ([]domain.Milestone, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Milestone, 0)
	for _, m := range r.s.milestones {
		if m.ContractID == contractID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r milestoneRepo) UpdateFields(_ context.Context, m domain.Milestone) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.milestones[m.MilestoneID]
	if !ok {
		return domain.ErrNotFound
	}
	current.Title = m.Title
	current.Description = m.Description
	current.Amount = m.Amount
	current.DueDate = m.DueDate
	current.UpdatedAt = m.UpdatedAt
	r.s.milestones[m.MilestoneID] = current
	return nil
}

func (r milestoneRepo) UpdateStatusTx(_ context.Context, p ports.MilestoneStatusParams) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.milestones[p.Milestone.MilestoneID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != p.Expected {
		return domain.ErrConflict
	}
	r.s.milestones[p.Milestone.MilestoneID] = p.Milestone
	if p.AccrueTotalPaid > 0 {
		c, ok := r.s.contracts[p.Milestone.ContractID]
		if !ok {
			return domain.ErrNotFound
		}
		c.TotalPaid += p.AccrueTotalPaid
		c.UpdatedAt = p.Milestone.UpdatedAt
		r.s.contracts[p.Milestone.ContractID] = c
	}
	r.s.enqueueLocked(p.Outbox)
	return nil
}

func (r milestoneRepo) PayTx(_ context.Context, p ports.MilestonePayParams) (ports.EscrowMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := p.Milestone
	current, ok := r.s.milestones[m.MilestoneID]
	if !ok {
		return ports.EscrowMovement{}, domain.ErrNotFound
	}
	if current.Status != p.Expected {
		return ports.EscrowMovement{}, domain.ErrConflict
	}
	account, ok := r.s.escrows[m.ContractID]
	if !ok {
		return ports.EscrowMovement{}, domain.ErrNotFound
	}
	if account.Status != domain.EscrowStatusActive {
		return ports.EscrowMovement{}, domain.ErrEscrowClosed
	}
	if account.HeldAmount < m.Amount {
		return ports.EscrowMovement{}, domain.ErrInsufficientFunds
	}
	wallet, ok := r.s.wallets[account.FreelancerID]
	if !ok {
		return ports.EscrowMovement{}, domain.ErrNotFound
	}
	contract, ok := r.s.contracts[m.ContractID]
	if !ok {
		return ports.EscrowMovement{}, domain.ErrNotFound
	}

	account.HeldAmount -= m.Amount
	account.UpdatedAt = p.OccurredAt
	wallet.PendingBalance += m.Amount
	wallet.UpdatedAt = p.OccurredAt
	contract.TotalPaid += m.Amount
	contract.UpdatedAt = p.OccurredAt
	r.s.escrows[m.ContractID] = account
	r.s.wallets[account.FreelancerID] = wallet
	r.s.contracts[m.ContractID] = contract
	r.s.milestones[m.MilestoneID] = m

	destWallet := wallet.WalletID
	r.s.escrowTx = append(r.s.escrowTx, domain.EscrowTransaction{
		TransactionID:       uuid.New(),
		EscrowAccountID:     account.EscrowAccountID,
		Amount:              m.Amount,
		Type:                domain.EscrowTxRelease,
		DestinationWalletID: &destWallet,
		Description:         p.Description,
		CreatedAt:           p.OccurredAt,
	})
	relatedID := account.EscrowAccountID
	r.s.walletTx = append(r.s.walletTx, domain.WalletTransaction{
		TransactionID: uuid.New(),
		WalletID:      wallet.WalletID,
		Amount:        m.Amount,
		Type:          domain.WalletTxRelease,
		RelatedID:     &relatedID,
		Metadata:      p.Description,
		CreatedAt:     p.OccurredAt,
	})
	r.s.enqueueLocked(p.ReleaseOutbox)
	r.s.enqueueLocked(p.StatusOutbox)
	return ports.EscrowMovement{Account: account, Wallet: wallet}, nil
}

func (r milestoneRepo) MarkDeletionRequested(_ context.Context, milestoneID uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.milestones[milestoneID]
	if !ok {
		return domain.ErrNotFound
	}
	m.DeletionRequestedAt = &at
	m.UpdatedAt = at
	r.s.milestones[milestoneID] = m
	return nil
}

func (r milestoneRepo) DeleteTx(_ context.Context, milestoneID uuid.UUID, outbox *ports.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.milestones[milestoneID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.milestones, milestoneID)
	r.s.enqueueLocked(outbox)
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, userID uuid.UUID) (domain.WalletUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return domain.WalletUser{}, domain.ErrNotFound
	}
	return u, nil
}

type idempotencyRepo struct{ s *Store }

func (r idempotencyRepo) Get(_ context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.idempotency[key]
	if !ok {
		return nil, nil
	}
	if now.After(row.ExpiresAt) {
		delete(r.s.idempotency, key)
		return nil, nil
	}
	c := row
	c.ResponseBody = append([]byte(nil), row.ResponseBody...)
	return &c, nil
}

func (r idempotencyRepo) Reserve(_ context.Context, key, requestHash string, now, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if row, ok := r.s.idempotency[key]; ok && now.Before(row.ExpiresAt) {
		if row.RequestHash != requestHash || len(row.ResponseBody) > 0 {
			return domain.ErrConflict
		}
		// Same request, reserved but never completed; the retry takes
		// over the reservation.
		row.ExpiresAt = expiresAt
		r.s.idempotency[key] = row
		return nil
	}
	r.s.idempotency[key] = ports.IdempotencyRecord{Key: key, RequestHash: requestHash, ExpiresAt: expiresAt}
	return nil
}

func (r idempotencyRepo) Complete(_ context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.idempotency[key]
	if !ok {
		return domain.ErrNotFound
	}
	row.ResponseCode = responseCode
	row.ResponseBody = append([]byte(nil), responseBody...)
	r.s.idempotency[key] = row
	return nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.enqueueLocked(&event)
	return nil
}

func (r outboxRepo) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if limit <= 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	out := make([]ports.OutboxRecord, 0, limit)
	token := claimToken
	for i := range r.s.outbox {
		row := &r.s.outbox[i]
		if row.PublishedAt != nil || row.DeadLetteredAt != nil {
			continue
		}
		if row.ClaimUntil != nil && row.ClaimUntil.After(now) {
			continue
		}
		until := claimUntil
		row.ClaimToken = &token
		row.ClaimUntil = &until
		out = append(out, *row)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r outboxRepo) MarkPublished(_ context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.outbox {
		row := &r.s.outbox[i]
		if row.OutboxID != outboxID || row.ClaimToken == nil || *row.ClaimToken != claimToken {
			continue
		}
		published := at
		row.PublishedAt = &published
		row.ClaimToken = nil
		row.ClaimUntil = nil
		return nil
	}
	return domain.ErrNotFound
}

func (r outboxRepo) MarkFailed(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.outbox {
		row := &r.s.outbox[i]
		if row.OutboxID != outboxID || row.ClaimToken == nil || *row.ClaimToken != claimToken {
			continue
		}
		row.RetryCount++
		msg := errMsg
		failedAt := at
		row.LastError = &msg
		row.LastErrorAt = &failedAt
		row.ClaimToken = nil
		row.ClaimUntil = nil
		return nil
	}
	return domain.ErrNotFound
}

func (r outboxRepo) MarkDeadLettered(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.outbox {
		row := &r.s.outbox[i]
		if row.OutboxID != outboxID || row.ClaimToken == nil || *row.ClaimToken != claimToken {
			continue
		}
		row.RetryCount++
		msg := errMsg
		deadAt := at
		row.LastError = &msg
		row.LastErrorAt = &deadAt
		row.DeadLetteredAt = &deadAt
		row.ClaimToken = nil
		row.ClaimUntil = nil
		return nil
	}
	return domain.ErrNotFound
}
