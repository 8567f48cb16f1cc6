package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/ports"
)

type idempotencyRepository struct {
	db *gorm.DB
}

// Get returns nil for both a missing and an expired record; an expired
// reservation is as good as absent to the caller.
func (r *idempotencyRepository) Get(ctx context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	var rec escrowIdempotencyModel
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !rec.ExpiresAt.After(now) {
		return nil, nil
	}
	out := ports.IdempotencyRecord{
		Key:          rec.IdempotencyKey,
		RequestHash:  rec.RequestHash,
		ResponseCode: rec.ResponseCode,
		ExpiresAt:    rec.ExpiresAt,
	}
	if rec.ResponseBody != nil {
		out.ResponseBody = []byte(*rec.ResponseBody)
	}
	return &out, nil
}

// Reserve inserts the key, or takes over an existing record when it is
// expired or is a live same-hash reservation that never completed. A live
// record with a different hash, or one that already holds a response, is a
// conflict.
func (r *idempotencyRepository) Reserve(ctx context.Context, key, requestHash string, now, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing escrowIdempotencyModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("idempotency_key = ?", key).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rec := escrowIdempotencyModel{
				IdempotencyKey: key,
				RequestHash:    requestHash,
				Status:         "PENDING",
				ExpiresAt:      expiresAt,
			}
			if err := tx.Create(&rec).Error; err != nil {
				if isUniqueViolation(err) {
					return domain.ErrConflict
				}
				return err
			}
			return nil
		}
		if err != nil {
			return err
		}

		if existing.ExpiresAt.After(now) {
			if existing.RequestHash != requestHash || existing.ResponseBody != nil {
				return domain.ErrConflict
			}
			return tx.Model(&escrowIdempotencyModel{}).
				Where("idempotency_key = ?", key).
				Updates(map[string]any{
					"expires_at": expiresAt,
					"updated_at": now,
				}).Error
		}

		return tx.Model(&escrowIdempotencyModel{}).
			Where("idempotency_key = ?", key).
			Updates(map[string]any{
				"request_hash":  requestHash,
				"status":        "PENDING",
				"response_code": 0,
				"response_body": nil,
				"expires_at":    expiresAt,
				"updated_at":    now,
			}).Error
	})
}

func (r *idempotencyRepository) Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	var body *string
	if len(responseBody) > 0 {
		raw := string(responseBody)
		body = &raw
	}
	return r.db.WithContext(ctx).
		Model(&escrowIdempotencyModel{}).
		Where("idempotency_key = ?", key).
		Updates(map[string]any{
			"status":        "COMPLETED",
			"response_code": responseCode,
			"response_body": body,
			"updated_at":    at,
		}).Error
}
