package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

// userRepository reads the local projection of platform users. Rows are
// synced in by the identity events consumer; this service never writes them
// outside that path.
type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.WalletUser, error) {
	var rec platformUserModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		return domain.WalletUser{}, notFound(err)
	}
	role, err := domain.ParseRole(rec.Role)
	if err != nil {
		return domain.WalletUser{}, err
	}
	return domain.WalletUser{
		UserID:   rec.UserID,
		Role:     role,
		IsActive: rec.IsActive,
	}, nil
}
