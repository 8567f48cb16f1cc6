package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/ports"
)

// GetWallet returns both balances for the wallet owner (or admin), served
// from the read cache when warm.
func (s *Service) GetWallet(ctx context.Context, actor Actor, userID uuid.UUID) (WalletBalance, error) {
	if userID == uuid.Nil {
		return WalletBalance{}, domain.ErrInvalidInput
	}
	if actor.Role != domain.RoleAdmin && actor.SubjectID != userID {
		return WalletBalance{}, domain.ErrUnauthorized
	}

	if s.balances != nil {
		if view, err := s.balances.GetWallet(ctx, userID); err == nil && view != nil {
			return WalletBalance{UserID: userID, Available: view.Available, Pending: view.Pending}, nil
		}
	}

	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return WalletBalance{}, err
	}
	balance := WalletBalance{UserID: userID, Available: wallet.AvailableBalance, Pending: wallet.PendingBalance}
	if s.balances != nil {
		_ = s.balances.SetWallet(ctx, userID, ports.WalletBalanceView{Available: wallet.AvailableBalance, Pending: wallet.PendingBalance})
	}
	return balance, nil
}

// InternalWalletBalance serves mesh-internal callers that authenticate at
// the transport layer, so there is no actor gate here.
func (s *Service) InternalWalletBalance(ctx context.Context, userID uuid.UUID) (WalletBalance, error) {
	if userID == uuid.Nil {
		return WalletBalance{}, domain.ErrInvalidInput
	}
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return WalletBalance{}, err
	}
	return WalletBalance{UserID: userID, Available: wallet.AvailableBalance, Pending: wallet.PendingBalance}, nil
}

// CreditPending adds released escrow money to a freelancer's pending
// balance. The wallet must already exist and the owner must be an active
// freelancer; the balance mutation and its RELEASE audit row are one
// atomic unit.
func (s *Service) CreditPending(ctx context.Context, actor Actor, userID uuid.UUID, amount domain.Amount, relatedID *uuid.UUID) (WalletBalance, error) {
	if actor.Role != domain.RoleAdmin {
		return WalletBalance{}, domain.ErrUnauthorized
	}
	if userID == uuid.Nil || !amount.Positive() {
		return WalletBalance{}, domain.ErrInvalidInput
	}
	if err := s.requireActiveFreelancer(ctx, userID); err != nil {
		return WalletBalance{}, err
	}

	now := s.nowFn()
	wallet, err := s.wallets.CreditPendingTx(ctx, ports.CreditPendingParams{
		UserID:     userID,
		Amount:     amount,
		RelatedID:  relatedID,
		Metadata:   "manual pending credit",
		OccurredAt: now,
		Outbox:     s.walletMovementEvent(domain.EventEscrowReleased, userID, amount, domain.WalletTxRelease, relatedID, actor.RequestID, now),
	})
	if err != nil {
		return WalletBalance{}, err
	}
	if s.balances != nil {
		_ = s.balances.InvalidateWallet(ctx, userID)
	}
	return WalletBalance{UserID: userID, Available: wallet.AvailableBalance, Pending: wallet.PendingBalance}, nil
}

// MovePendingToAvailable clears pending funds into the spendable balance.
// The pending check happens inside the same transaction as the transfer so
// concurrent clears cannot both pass it.
func (s *Service) MovePendingToAvailable(ctx context.Context, actor Actor, input PendingTransferInput) (WalletBalance, error) {
	if actor.SubjectID == uuid.Nil {
		return WalletBalance{}, domain.ErrUnauthorized
	}
	if actor.Role != domain.RoleAdmin && actor.SubjectID != input.UserID {
		return WalletBalance{}, domain.ErrUnauthorized
	}
	if input.UserID == uuid.Nil || !input.Amount.Positive() {
		return WalletBalance{}, domain.ErrInvalidInput
	}

	requestHash := hashJSON(input)
	var cached WalletBalance
	if ok, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil {
		return WalletBalance{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return WalletBalance{}, err
	}

	now := s.nowFn()
	wallet, err := s.wallets.MovePendingToAvailableTx(ctx, ports.PendingTransferParams{
		UserID:     input.UserID,
		Amount:     input.Amount,
		Metadata:   "pending to available transfer",
		OccurredAt: now,
		Outbox:     s.walletMovementEvent(domain.EventWalletPendingCleared, input.UserID, input.Amount, domain.WalletTxAdjustment, nil, actor.RequestID, now),
	})
	if err != nil {
		return WalletBalance{}, err
	}
	if s.balances != nil {
		_ = s.balances.InvalidateWallet(ctx, input.UserID)
	}

	balance := WalletBalance{UserID: input.UserID, Available: wallet.AvailableBalance, Pending: wallet.PendingBalance}
	s.completeIdempotency(ctx, actor.IdempotencyKey, balance)
	return balance, nil
}

// ProcessPayoutDeduction withdraws available funds against an external
// payout. The available check and the decrement share one transaction;
// the WITHDRAWAL audit row is tagged with the payout id.
func (s *Service) ProcessPayoutDeduction(ctx context.Context, actor Actor, input PayoutDeductionInput) (WalletBalance, error) {
	if actor.SubjectID == uuid.Nil {
		return WalletBalance{}, domain.ErrUnauthorized
	}
	if actor.Role != domain.RoleAdmin && actor.SubjectID != input.UserID {
		return WalletBalance{}, domain.ErrUnauthorized
	}
	if input.UserID == uuid.Nil || input.PayoutID == uuid.Nil || !input.Amount.Positive() {
		return WalletBalance{}, domain.ErrInvalidInput
	}

	requestHash := hashJSON(input)
	var cached WalletBalance
	if ok, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil {
		return WalletBalance{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return WalletBalance{}, err
	}

	now := s.nowFn()
	payoutID := input.PayoutID
	wallet, err := s.wallets.PayoutDeductionTx(ctx, ports.PayoutDeductionParams{
		UserID:     input.UserID,
		Amount:     input.Amount,
		PayoutID:   payoutID,
		OccurredAt: now,
		Outbox:     s.walletMovementEvent(domain.EventWalletPayoutDeducted, input.UserID, input.Amount, domain.WalletTxWithdrawal, &payoutID, actor.RequestID, now),
	})
	if err != nil {
		return WalletBalance{}, err
	}
	if s.balances != nil {
		_ = s.balances.InvalidateWallet(ctx, input.UserID)
	}

	balance := WalletBalance{UserID: input.UserID, Available: wallet.AvailableBalance, Pending: wallet.PendingBalance}
	s.completeIdempotency(ctx, actor.IdempotencyKey, balance)
	return balance, nil
}

// ListWalletTransactions returns the most recent audit rows for the
// caller's wallet.
func (s *Service) ListWalletTransactions(ctx context.Context, actor Actor, userID uuid.UUID, limit int) ([]domain.WalletTransaction, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrInvalidInput
	}
	if actor.Role != domain.RoleAdmin && actor.SubjectID != userID {
		return nil, domain.ErrUnauthorized
	}
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.wallets.ListTransactions(ctx, wallet.WalletID, limit)
}
