package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/ports"
)

type walletRepository struct {
	db *gorm.DB
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Wallet, error) {
	var rec walletModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		return domain.Wallet{}, notFound(err)
	}
	return toDomainWallet(rec), nil
}

func (r *walletRepository) Ensure(ctx context.Context, userID uuid.UUID, now time.Time) (domain.Wallet, error) {
	rec := walletModel{
		WalletID:  uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&rec).Error
	if err != nil {
		return domain.Wallet{}, err
	}
	// Re-read so the caller sees the surviving row whichever side of the
	// conflict it was on.
	return r.GetByUserID(ctx, userID)
}

// lockWallet re-reads the wallet row under FOR UPDATE so the balance check
// and the mutation that follows cannot interleave with a concurrent call.
func lockWallet(tx *gorm.DB, userID uuid.UUID) (walletModel, error) {
	var rec walletModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Take(&rec).Error
	if err != nil {
		return walletModel{}, notFound(err)
	}
	return rec, nil
}

func writeWalletTransaction(tx *gorm.DB, walletID uuid.UUID, amount domain.Amount, txType string, relatedID *uuid.UUID, metadata string, at time.Time) error {
	rec := walletTransactionModel{
		TransactionID: uuid.New(),
		WalletID:      walletID,
		Amount:        int64(amount),
		Type:          txType,
		RelatedID:     relatedID,
		Metadata:      metadata,
		CreatedAt:     at,
	}
	return tx.Create(&rec).Error
}

func enqueueOutbox(tx *gorm.DB, event *ports.OutboxEvent) error {
	if event == nil {
		return nil
	}
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	rec := escrowOutboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(payload),
		CreatedAt:    event.OccurredAt,
		FirstSeenAt:  event.OccurredAt,
	}
	return tx.Create(&rec).Error
}

func (r *walletRepository) CreditPendingTx(ctx context.Context, p ports.CreditPendingParams) (domain.Wallet, error) {
	var result domain.Wallet
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := lockWallet(tx, p.UserID)
		if err != nil {
			return err
		}

		rec.PendingBalance += int64(p.Amount)
		rec.UpdatedAt = p.OccurredAt
		res := tx.Model(&walletModel{}).
			Where("wallet_id = ?", rec.WalletID).
			Updates(map[string]any{
				"pending_balance": rec.PendingBalance,
				"updated_at":      rec.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}

		if err := writeWalletTransaction(tx, rec.WalletID, p.Amount, domain.WalletTxRelease, p.RelatedID, p.Metadata, p.OccurredAt); err != nil {
			return err
		}
		if err := enqueueOutbox(tx, p.Outbox); err != nil {
			return err
		}
		result = toDomainWallet(rec)
		return nil
	})
	if err != nil {
		return domain.Wallet{}, err
	}
	return result, nil
}

func (r *walletRepository) MovePendingToAvailableTx(ctx context.Context, p ports.PendingTransferParams) (domain.Wallet, error) {
	var result domain.Wallet
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := lockWallet(tx, p.UserID)
		if err != nil {
			return err
		}
		if rec.PendingBalance < int64(p.Amount) {
			return domain.ErrInsufficientFunds
		}

		rec.PendingBalance -= int64(p.Amount)
		rec.AvailableBalance += int64(p.Amount)
		rec.UpdatedAt = p.OccurredAt
		res := tx.Model(&walletModel{}).
			Where("wallet_id = ?", rec.WalletID).
			Updates(map[string]any{
				"pending_balance":   rec.PendingBalance,
				"available_balance": rec.AvailableBalance,
				"updated_at":        rec.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}

		if err := writeWalletTransaction(tx, rec.WalletID, p.Amount, domain.WalletTxAdjustment, nil, p.Metadata, p.OccurredAt); err != nil {
			return err
		}
		if err := enqueueOutbox(tx, p.Outbox); err != nil {
			return err
		}
		result = toDomainWallet(rec)
		return nil
	})
	if err != nil {
		return domain.Wallet{}, err
	}
	return result, nil
}

func (r *walletRepository) PayoutDeductionTx(ctx context.Context, p ports.PayoutDeductionParams) (domain.Wallet, error) {
	var result domain.Wallet
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := lockWallet(tx, p.UserID)
		if err != nil {
			return err
		}
		if rec.AvailableBalance < int64(p.Amount) {
			return domain.ErrInsufficientFunds
		}

		rec.AvailableBalance -= int64(p.Amount)
		rec.UpdatedAt = p.OccurredAt
		res := tx.Model(&walletModel{}).
			Where("wallet_id = ?", rec.WalletID).
			Updates(map[string]any{
				"available_balance": rec.AvailableBalance,
				"updated_at":        rec.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}

		payoutID := p.PayoutID
		if err := writeWalletTransaction(tx, rec.WalletID, p.Amount, domain.WalletTxWithdrawal, &payoutID, "payout deduction", p.OccurredAt); err != nil {
			return err
		}
		if err := enqueueOutbox(tx, p.Outbox); err != nil {
			return err
		}
		result = toDomainWallet(rec)
		return nil
	})
	if err != nil {
		return domain.Wallet{}, err
	}
	return result, nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.WalletTransaction, error) {
	var rows []walletTransactionModel
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.WalletTransaction, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainWalletTransaction(row))
	}
	return result, nil
}
