package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/ports"
)

type contractRepository struct {
	db *gorm.DB
}

func toContractModel(c domain.Contract) contractModel {
	return contractModel{
		ContractID:   c.ContractID,
		ClientID:     c.ClientID,
		FreelancerID: c.FreelancerID,
		JobID:        c.JobID,
		Status:       string(c.Status),
		Amount:       int64(c.Amount),
		Currency:     c.Currency,
		TotalPaid:    int64(c.TotalPaid),
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
		SubmittedAt:  c.SubmittedAt,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (r *contractRepository) Create(ctx context.Context, c domain.Contract, outbox *ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := toContractModel(c)
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		return enqueueOutbox(tx, outbox)
	})
}

func (r *contractRepository) GetByID(ctx context.Context, contractID uuid.UUID) (domain.Contract, error) {
	var rec contractModel
	if err := r.db.WithContext(ctx).Where("contract_id = ?", contractID).Take(&rec).Error; err != nil {
		return domain.Contract{}, notFound(err)
	}
	return toDomainContract(rec), nil
}

// UpdateStatusTx persists a transition conditionally on the expected prior
// status. A lost race leaves zero rows affected and surfaces as a conflict
// rather than silently overwriting the winner.
func (r *contractRepository) UpdateStatusTx(ctx context.Context, c domain.Contract, expected domain.ContractStatus, outbox *ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&contractModel{}).
			Where("contract_id = ?", c.ContractID).
			Where("status = ?", string(expected)).
			Updates(map[string]any{
				"status":       string(c.Status),
				"start_date":   c.StartDate,
				"end_date":     c.EndDate,
				"submitted_at": c.SubmittedAt,
				"updated_at":   c.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrConflict
		}
		return enqueueOutbox(tx, outbox)
	})
}
