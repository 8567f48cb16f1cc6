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

type milestoneRepository struct {
	db *gorm.DB
}

func toMilestoneModel(m domain.Milestone) milestoneModel {
	return milestoneModel{
		MilestoneID:         m.MilestoneID,
		ContractID:          m.ContractID,
		Sequence:            m.Sequence,
		Title:               m.Title,
		Description:         m.Description,
		Amount:              int64(m.Amount),
		Currency:            m.Currency,
		Status:              string(m.Status),
		DueDate:             m.DueDate,
		ApprovedAt:          m.ApprovedAt,
		SubmittedAt:         m.SubmittedAt,
		DisputedAt:          m.DisputedAt,
		DeletionRequestedAt: m.DeletionRequestedAt,
		PaidAt:              m.PaidAt,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// CreateTx assigns the sequence inside the transaction from the contract's
// milestone counter. The counter only ever grows, so a handshake-deleted
// milestone never gets its number reassigned, and the parent row lock makes
// two concurrent creates serialize instead of both reading the same value.
func (r *milestoneRepository) CreateTx(ctx context.Context, m domain.Milestone, outbox *ports.OutboxEvent) (domain.Milestone, error) {
	var result domain.Milestone
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent contractModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("contract_id = ?", m.ContractID).
			Take(&parent).Error
		if err != nil {
			return notFound(err)
		}

		m.Sequence = parent.MilestoneSeq + 1
		if err := tx.Model(&contractModel{}).
			Where("contract_id = ?", m.ContractID).
			Update("milestone_seq", m.Sequence).Error; err != nil {
			return err
		}

		rec := toMilestoneModel(m)
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		if err := enqueueOutbox(tx, outbox); err != nil {
			return err
		}
		result = m
		return nil
	})
	if err != nil {
		return domain.Milestone{}, err
	}
	return result, nil
}

func (r *milestoneRepository) GetByID(ctx context.Context, milestoneID uuid.UUID) (domain.Milestone, error) {
	var rec milestoneModel
	if err := r.db.WithContext(ctx).Where("milestone_id = ?", milestoneID).Take(&rec).Error; err != nil {
		return domain.Milestone{}, notFound(err)
	}
	return toDomainMilestone(rec), nil
}

func (r *milestoneRepository) ListByContractID(ctx context.Context, contractID uuid.UUID) ([]domain.Milestone, error) {
	var rows []milestoneModel
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("sequence ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.Milestone, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainMilestone(row))
	}
	return result, nil
}

// UpdateFields writes the editable columns only; status and its timestamps
// go through UpdateStatusTx.
func (r *milestoneRepository) UpdateFields(ctx context.Context, m domain.Milestone) error {
	res := r.db.WithContext(ctx).
		Model(&milestoneModel{}).
		Where("milestone_id = ?", m.MilestoneID).
		Updates(map[string]any{
			"title":       m.Title,
			"description": m.Description,
			"amount":      int64(m.Amount),
			"due_date":    m.DueDate,
			"updated_at":  m.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *milestoneRepository) UpdateStatusTx(ctx context.Context, p ports.MilestoneStatusParams) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := p.Milestone
		res := tx.Model(&milestoneModel{}).
			Where("milestone_id = ?", m.MilestoneID).
			Where("status = ?", string(p.Expected)).
			Updates(map[string]any{
				"status":       string(m.Status),
				"approved_at":  m.ApprovedAt,
				"submitted_at": m.SubmittedAt,
				"disputed_at":  m.DisputedAt,
				"paid_at":      m.PaidAt,
				"updated_at":   m.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrConflict
		}

		if p.AccrueTotalPaid > 0 {
			if err := tx.Model(&contractModel{}).
				Where("contract_id = ?", m.ContractID).
				Updates(map[string]any{
					"total_paid": gorm.Expr("total_paid + ?", int64(p.AccrueTotalPaid)),
					"updated_at": m.UpdatedAt,
				}).Error; err != nil {
				return err
			}
		}
		return enqueueOutbox(tx, p.Outbox)
	})
}

// PayTx commits the milestone payment in one transaction: escrow release,
// status change, total_paid accrual, and both outbox events all land
// together or roll back together. A retry after a failed attempt therefore
// never finds half-moved funds.
func (r *milestoneRepository) PayTx(ctx context.Context, p ports.MilestonePayParams) (ports.EscrowMovement, error) {
	var result ports.EscrowMovement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := p.Milestone
		account, err := lockEscrowByContract(tx, m.ContractID)
		if err != nil {
			return err
		}
		if account.Status != domain.EscrowStatusActive {
			return domain.ErrEscrowClosed
		}
		if account.HeldAmount < int64(m.Amount) {
			return domain.ErrInsufficientFunds
		}
		wallet, err := lockWallet(tx, account.FreelancerID)
		if err != nil {
			return err
		}

		account.HeldAmount -= int64(m.Amount)
		account.UpdatedAt = p.OccurredAt
		if err := updateEscrowHeld(tx, account); err != nil {
			return err
		}
		wallet.PendingBalance += int64(m.Amount)
		wallet.UpdatedAt = p.OccurredAt
		if err := tx.Model(&walletModel{}).
			Where("wallet_id = ?", wallet.WalletID).
			Updates(map[string]any{
				"pending_balance": wallet.PendingBalance,
				"updated_at":      wallet.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		destWallet := wallet.WalletID
		if err := writeEscrowTransaction(tx, escrowTransactionModel{
			EscrowAccountID:     account.EscrowAccountID,
			Amount:              int64(m.Amount),
			Type:                domain.EscrowTxRelease,
			DestinationWalletID: &destWallet,
			Description:         p.Description,
			CreatedAt:           p.OccurredAt,
		}); err != nil {
			return err
		}
		relatedID := account.EscrowAccountID
		if err := writeWalletTransaction(tx, wallet.WalletID, m.Amount, domain.WalletTxRelease, &relatedID, p.Description, p.OccurredAt); err != nil {
			return err
		}

		res := tx.Model(&milestoneModel{}).
			Where("milestone_id = ?", m.MilestoneID).
			Where("status = ?", string(p.Expected)).
			Updates(map[string]any{
				"status":     string(m.Status),
				"paid_at":    m.PaidAt,
				"updated_at": m.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrConflict
		}
		if err := tx.Model(&contractModel{}).
			Where("contract_id = ?", m.ContractID).
			Updates(map[string]any{
				"total_paid": gorm.Expr("total_paid + ?", int64(m.Amount)),
				"updated_at": m.UpdatedAt,
			}).Error; err != nil {
			return err
		}
		if err := enqueueOutbox(tx, p.ReleaseOutbox); err != nil {
			return err
		}
		if err := enqueueOutbox(tx, p.StatusOutbox); err != nil {
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

func (r *milestoneRepository) MarkDeletionRequested(ctx context.Context, milestoneID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&milestoneModel{}).
		Where("milestone_id = ?", milestoneID).
		Updates(map[string]any{
			"deletion_requested_at": at,
			"updated_at":            at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteTx is the only hard delete in the service and only the accepted
// handshake reaches it.
func (r *milestoneRepository) DeleteTx(ctx context.Context, milestoneID uuid.UUID, outbox *ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("milestone_id = ?", milestoneID).Delete(&milestoneModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return enqueueOutbox(tx, outbox)
	})
}
