package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/ports"
)

// openEscrowAccount creates the per-contract holding account when the
// contract enters its escrow-eligible state. A concurrent open of the same
// account is harmless: the unique contract binding makes the second create
// a conflict, which is swallowed.
func (s *Service) openEscrowAccount(ctx context.Context, c domain.Contract, requestID string, now time.Time) error {
	account := domain.EscrowAccount{
		EscrowAccountID: uuid.New(),
		ContractID:      c.ContractID,
		ClientID:        c.ClientID,
		FreelancerID:    c.FreelancerID,
		Status:          domain.EscrowStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	event := s.newOutboxEvent(domain.EventEscrowAccountOpened, c.ContractID.String(), requestID, map[string]string{
		"escrow_account_id": account.EscrowAccountID.String(),
		"contract_id":       c.ContractID.String(),
	}, now)
	err := s.escrows.Open(ctx, account, event)
	if errors.Is(err, domain.ErrConflict) {
		return nil
	}
	return err
}

// Deposit funds the contract's escrow from the client's available balance.
// The wallet check, both balance mutations, and both audit rows commit as
// one transaction or not at all.
func (s *Service) Deposit(ctx context.Context, actor Actor, input DepositInput) (EscrowStatus, error) {
	if actor.SubjectID == uuid.Nil {
		return EscrowStatus{}, domain.ErrUnauthorized
	}
	if input.ContractID == uuid.Nil || !input.Amount.Positive() {
		return EscrowStatus{}, domain.ErrInvalidInput
	}

	c, err := s.contracts.GetByID(ctx, input.ContractID)
	if err != nil {
		return EscrowStatus{}, err
	}
	if err := s.requireClient(actor, c); err != nil {
		return EscrowStatus{}, err
	}

	requestHash := hashJSON(input)
	var cached EscrowStatus
	if ok, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil {
		return EscrowStatus{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return EscrowStatus{}, err
	}

	now := s.nowFn()
	movement, err := s.escrows.DepositTx(ctx, ports.EscrowDepositParams{
		ContractID: input.ContractID,
		ClientID:   c.ClientID,
		Amount:     input.Amount,
		OccurredAt: now,
		Outbox:     s.newPendingEscrowEvent(domain.EventEscrowDeposited, input.ContractID, input.Amount, domain.EscrowTxDeposit, actor.RequestID, now),
	})
	if err != nil {
		return EscrowStatus{}, err
	}
	s.invalidateBalances(ctx, c.ClientID, input.ContractID)

	status := escrowStatusFrom(movement.Account)
	s.completeIdempotency(ctx, actor.IdempotencyKey, status)
	return status, nil
}

// Release moves held funds to the freelancer's pending balance. Only the
// contract's client (or admin) may release, and the freelancer must be an
// active freelancer-role user with an existing wallet.
func (s *Service) Release(ctx context.Context, actor Actor, input ReleaseInput) (EscrowStatus, error) {
	if actor.SubjectID == uuid.Nil {
		return EscrowStatus{}, domain.ErrUnauthorized
	}
	if input.ContractID == uuid.Nil || !input.Amount.Positive() {
		return EscrowStatus{}, domain.ErrInvalidInput
	}

	c, err := s.contracts.GetByID(ctx, input.ContractID)
	if err != nil {
		return EscrowStatus{}, err
	}
	if err := s.requireClient(actor, c); err != nil {
		return EscrowStatus{}, err
	}
	if err := s.requireActiveFreelancer(ctx, c.FreelancerID); err != nil {
		return EscrowStatus{}, err
	}

	requestHash := hashJSON(input)
	var cached EscrowStatus
	if ok, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil {
		return EscrowStatus{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return EscrowStatus{}, err
	}

	now := s.nowFn()
	movement, err := s.releaseTx(ctx, c, input.Amount, input.Description, actor.RequestID, now)
	if err != nil {
		return EscrowStatus{}, err
	}

	status := escrowStatusFrom(movement.Account)
	s.completeIdempotency(ctx, actor.IdempotencyKey, status)
	return status, nil
}

// releaseTx is the shared escrow-release core used by Release and by the
// milestone payment path. Callers have already authorized and reserved
// idempotency.
func (s *Service) releaseTx(ctx context.Context, c domain.Contract, amount domain.Amount, description, requestID string, now time.Time) (ports.EscrowMovement, error) {
	movement, err := s.escrows.ReleaseTx(ctx, ports.EscrowReleaseParams{
		ContractID:  c.ContractID,
		Amount:      amount,
		Description: description,
		OccurredAt:  now,
		Outbox:      s.newPendingEscrowEvent(domain.EventEscrowReleased, c.ContractID, amount, domain.EscrowTxRelease, requestID, now),
	})
	if err != nil {
		return ports.EscrowMovement{}, err
	}
	s.invalidateBalances(ctx, c.FreelancerID, c.ContractID)
	return movement, nil
}

// Refund returns held funds to the client's available balance. Refunds are
// a corrective flow: the contract's client or an admin may trigger them.
func (s *Service) Refund(ctx context.Context, actor Actor, input RefundInput) (EscrowStatus, error) {
	if actor.SubjectID == uuid.Nil {
		return EscrowStatus{}, domain.ErrUnauthorized
	}
	if input.ContractID == uuid.Nil || !input.Amount.Positive() {
		return EscrowStatus{}, domain.ErrInvalidInput
	}

	c, err := s.contracts.GetByID(ctx, input.ContractID)
	if err != nil {
		return EscrowStatus{}, err
	}
	if err := s.requireClient(actor, c); err != nil {
		return EscrowStatus{}, err
	}

	requestHash := hashJSON(input)
	var cached EscrowStatus
	if ok, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil {
		return EscrowStatus{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return EscrowStatus{}, err
	}

	now := s.nowFn()
	movement, err := s.escrows.RefundTx(ctx, ports.EscrowRefundParams{
		ContractID:  input.ContractID,
		Amount:      input.Amount,
		Description: input.Description,
		OccurredAt:  now,
		Outbox:      s.newPendingEscrowEvent(domain.EventEscrowRefunded, input.ContractID, input.Amount, domain.EscrowTxRefund, actor.RequestID, now),
	})
	if err != nil {
		return EscrowStatus{}, err
	}
	s.invalidateBalances(ctx, c.ClientID, input.ContractID)

	status := escrowStatusFrom(movement.Account)
	s.completeIdempotency(ctx, actor.IdempotencyKey, status)
	return status, nil
}

// GetEscrowStatus is the read projection of the contract's escrow account;
// Present is false until the account is opened.
func (s *Service) GetEscrowStatus(ctx context.Context, actor Actor, contractID uuid.UUID) (EscrowStatus, error) {
	if contractID == uuid.Nil {
		return EscrowStatus{}, domain.ErrInvalidInput
	}
	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return EscrowStatus{}, err
	}
	if err := s.requireParty(actor, c); err != nil {
		return EscrowStatus{}, err
	}

	if s.balances != nil {
		if view, err := s.balances.GetEscrow(ctx, contractID); err == nil && view != nil {
			return EscrowStatus{Present: true, ContractID: contractID, Held: view.Held, Initial: view.Initial, Status: domain.EscrowStatusActive}, nil
		}
	}

	lookup, err := s.escrows.FindByContractID(ctx, contractID)
	if err != nil {
		return EscrowStatus{}, err
	}
	if !lookup.Present {
		return EscrowStatus{Present: false, ContractID: contractID}, nil
	}
	status := escrowStatusFrom(lookup.Account)
	if s.balances != nil && lookup.Account.Status == domain.EscrowStatusActive {
		_ = s.balances.SetEscrow(ctx, contractID, ports.EscrowBalanceView{Held: lookup.Account.HeldAmount, Initial: lookup.Account.InitialAmount})
	}
	return status, nil
}

// InternalEscrowStatus is the ungated variant of GetEscrowStatus for
// mesh-internal callers.
func (s *Service) InternalEscrowStatus(ctx context.Context, contractID uuid.UUID) (EscrowStatus, error) {
	if contractID == uuid.Nil {
		return EscrowStatus{}, domain.ErrInvalidInput
	}
	lookup, err := s.escrows.FindByContractID(ctx, contractID)
	if err != nil {
		return EscrowStatus{}, err
	}
	if !lookup.Present {
		return EscrowStatus{Present: false, ContractID: contractID}, nil
	}
	return escrowStatusFrom(lookup.Account), nil
}

func (s *Service) requireActiveFreelancer(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role != domain.RoleFreelancer || !user.IsActive {
		return domain.ErrWalletInactive
	}
	return nil
}

// newPendingEscrowEvent builds the movement event before the transaction
// runs, so the payload carries the movement itself rather than post-commit
// account state.
func (s *Service) newPendingEscrowEvent(eventType string, contractID uuid.UUID, amount domain.Amount, movement, requestID string, now time.Time) *ports.OutboxEvent {
	return s.newOutboxEvent(eventType, contractID.String(), requestID, contracts.EscrowMovementPayload{
		ContractID:   contractID.String(),
		MovementType: movement,
		Amount:       amount.Major(),
		OccurredAt:   now.Format(time.RFC3339Nano),
	}, now)
}

func (s *Service) invalidateBalances(ctx context.Context, userID, contractID uuid.UUID) {
	if s.balances == nil {
		return
	}
	_ = s.balances.InvalidateWallet(ctx, userID)
	_ = s.balances.InvalidateEscrow(ctx, contractID)
}

func escrowStatusFrom(account domain.EscrowAccount) EscrowStatus {
	return EscrowStatus{
		Present:    true,
		ContractID: account.ContractID,
		Held:       account.HeldAmount,
		Initial:    account.InitialAmount,
		Status:     account.Status,
	}
}
