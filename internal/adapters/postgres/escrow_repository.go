package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/ports"
)

type escrowRepository struct {
	db *gorm.DB
}

func (r *escrowRepository) FindByContractID(ctx context.Context, contractID uuid.UUID) (domain.EscrowLookup, error) {
	var rec escrowAccountModel
	err := r.db.WithContext(ctx).Where("contract_id = ?", contractID).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.EscrowLookup{Present: false}, nil
		}
		return domain.EscrowLookup{}, err
	}
	return domain.EscrowLookup{Present: true, Account: toDomainEscrowAccount(rec)}, nil
}

func (r *escrowRepository) Open(ctx context.Context, account domain.EscrowAccount, outbox *ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := escrowAccountModel{
			EscrowAccountID: account.EscrowAccountID,
			ContractID:      account.ContractID,
			ClientID:        account.ClientID,
			FreelancerID:    account.FreelancerID,
			HeldAmount:      int64(account.HeldAmount),
			InitialAmount:   int64(account.InitialAmount),
			Status:          account.Status,
			CreatedAt:       account.CreatedAt,
			UpdatedAt:       account.UpdatedAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		return enqueueOutbox(tx, outbox)
	})
}

// lockEscrowByContract re-reads the account row under FOR UPDATE. All money
// movements go through this lock so the held-amount check cannot race.
func lockEscrowByContract(tx *gorm.DB, contractID uuid.UUID) (escrowAccountModel, error) {
	var rec escrowAccountModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("contract_id = ?", contractID).
		Take(&rec).Error
	if err != nil {
		return escrowAccountModel{}, notFound(err)
	}
	return rec, nil
}

func writeEscrowTransaction(tx *gorm.DB, p escrowTransactionModel) error {
	p.TransactionID = uuid.New()
	return tx.Create(&p).Error
}

func updateEscrowHeld(tx *gorm.DB, rec escrowAccountModel) error {
	return tx.Model(&escrowAccountModel{}).
		Where("escrow_account_id = ?", rec.EscrowAccountID).
		Updates(map[string]any{
			"held_amount": rec.HeldAmount,
			"updated_at":  rec.UpdatedAt,
		}).Error
}

func (r *escrowRepository) DepositTx(ctx context.Context, p ports.EscrowDepositParams) (ports.EscrowMovement, error) {
	var result ports.EscrowMovement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := lockEscrowByContract(tx, p.ContractID)
		if err != nil {
			return err
		}
		if account.Status != domain.EscrowStatusActive {
			return domain.ErrEscrowClosed
		}
		wallet, err := lockWallet(tx, p.ClientID)
		if err != nil {
			return err
		}
		if wallet.AvailableBalance < int64(p.Amount) {
			return domain.ErrInsufficientFunds
		}

		wallet.AvailableBalance -= int64(p.Amount)
		wallet.UpdatedAt = p.OccurredAt
		if err := tx.Model(&walletModel{}).
			Where("wallet_id = ?", wallet.WalletID).
			Updates(map[string]any{
				"available_balance": wallet.AvailableBalance,
				"updated_at":        wallet.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		account.HeldAmount += int64(p.Amount)
		account.UpdatedAt = p.OccurredAt
		if err := updateEscrowHeld(tx, account); err != nil {
			return err
		}

		sourceWallet := wallet.WalletID
		if err := writeEscrowTransaction(tx, escrowTransactionModel{
			EscrowAccountID: account.EscrowAccountID,
			Amount:          int64(p.Amount),
			Type:            domain.EscrowTxDeposit,
			SourceWalletID:  &sourceWallet,
			Description:     "escrow deposit",
			CreatedAt:       p.OccurredAt,
		}); err != nil {
			return err
		}
		relatedID := account.EscrowAccountID
		if err := writeWalletTransaction(tx, wallet.WalletID, p.Amount, domain.WalletTxHold, &relatedID, "escrow deposit hold", p.OccurredAt); err != nil {
			return err
		}
		if err := enqueueOutbox(tx, p.Outbox); err != nil {
			return err
		}
		result = ports.EscrowMovement{Account: toDomainEscrowAccount(account), Wallet: toDomainWallet(wallet)}
		return nil
	})
	if err != nil {
		return ports.EscrowMovement{}, err
	}
	return result, nil
}

func (r *escrowRepository) ReleaseTx(ctx context.Context, p ports.EscrowReleaseParams) (ports.EscrowMovement, error) {
	var result ports.EscrowMovement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := lockEscrowByContract(tx, p.ContractID)
		if err != nil {
			return err
		}
		if account.Status != domain.EscrowStatusActive {
			return domain.ErrEscrowClosed
		}
		if account.HeldAmount < int64(p.Amount) {
			return domain.ErrInsufficientFunds
		}
		wallet, err := lockWallet(tx, account.FreelancerID)
		if err != nil {
			return err
		}

		account.HeldAmount -= int64(p.Amount)
		account.UpdatedAt = p.OccurredAt
		if err := updateEscrowHeld(tx, account); err != nil {
			return err
		}

		wallet.PendingBalance += int64(p.Amount)
		wallet.UpdatedAt = p.OccurredAt
		if err := tx.Model(&walletModel{}).
			Where("wallet_id = ?", wallet.WalletID).
			Updates(map[string]any{
				"pending_balance": wallet.PendingBalance,
				"updated_at":      wallet.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		description := p.Description
		if description == "" {
			description = "escrow release"
		}
		destWallet := wallet.WalletID
		if err := writeEscrowTransaction(tx, escrowTransactionModel{
			EscrowAccountID:     account.EscrowAccountID,
			Amount:              int64(p.Amount),
			Type:                domain.EscrowTxRelease,
			DestinationWalletID: &destWallet,
			Description:         description,
			CreatedAt:           p.OccurredAt,
		}); err != nil {
			return err
		}
		relatedID := account.EscrowAccountID
		if err := writeWalletTransaction(tx, wallet.WalletID, p.Amount, domain.WalletTxRelease, &relatedID, description, p.OccurredAt); err != nil {
			return err
		}
		if err := enqueueOutbox(tx, p.Outbox); err != nil {
			return err
		}
		result = ports.EscrowMovement{Account: toDomainEscrowAccount(account), Wallet: toDomainWallet(wallet)}
		return nil
	})
	if err != nil {
		return ports.EscrowMovement{}, err
	}
	return result, nil
}

func (r *escrowRepository) RefundTx(ctx context.Context, p ports.EscrowRefundParams) (ports.EscrowMovement, error) {
	var result ports.EscrowMovement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := lockEscrowByContract(tx, p.ContractID)
		if err != nil {
			return err
		}
		if account.Status != domain.EscrowStatusActive {
			return domain.ErrEscrowClosed
		}
		if account.HeldAmount < int64(p.Amount) {
			return domain.ErrInsufficientFunds
		}
		wallet, err := lockWallet(tx, account.ClientID)
		if err != nil {
			return err
		}

		account.HeldAmount -= int64(p.Amount)
		account.UpdatedAt = p.OccurredAt
		if err := updateEscrowHeld(tx, account); err != nil {
			return err
		}

		wallet.AvailableBalance += int64(p.Amount)
		wallet.UpdatedAt = p.OccurredAt
		if err := tx.Model(&walletModel{}).
			Where("wallet_id = ?", wallet.WalletID).
			Updates(map[string]any{
				"available_balance": wallet.AvailableBalance,
				"updated_at":        wallet.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		description := p.Description
		if description == "" {
			description = "escrow refund"
		}
		destWallet := wallet.WalletID
		if err := writeEscrowTransaction(tx, escrowTransactionModel{
			EscrowAccountID:     account.EscrowAccountID,
			Amount:              int64(p.Amount),
			Type:                domain.EscrowTxRefund,
			DestinationWalletID: &destWallet,
			Description:         description,
			CreatedAt:           p.OccurredAt,
		}); err != nil {
			return err
		}
		relatedID := account.EscrowAccountID
		if err := writeWalletTransaction(tx, wallet.WalletID, p.Amount, domain.WalletTxAdjustment, &relatedID, description, p.OccurredAt); err != nil {
			return err
		}
		if err := enqueueOutbox(tx, p.Outbox); err != nil {
			return err
		}
		result = ports.EscrowMovement{Account: toDomainEscrowAccount(account), Wallet: toDomainWallet(wallet)}
		return nil
	})
	if err != nil {
		return ports.EscrowMovement{}, err
	}
	return result, nil
}

func (r *escrowRepository) ListTransactions(ctx context.Context, escrowAccountID uuid.UUID) ([]domain.EscrowTransaction, error) {
	var rows []escrowTransactionModel
	err := r.db.WithContext(ctx).
		Where("escrow_account_id = ?", escrowAccountID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.EscrowTransaction, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainEscrowTransaction(row))
	}
	return result, nil
}
