package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

func toDomainWallet(rec walletModel) domain.Wallet {
	return domain.Wallet{
		WalletID:         rec.WalletID,
		UserID:           rec.UserID,
		AvailableBalance: domain.Amount(rec.AvailableBalance),
		PendingBalance:   domain.Amount(rec.PendingBalance),
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}

func toDomainWalletTransaction(rec walletTransactionModel) domain.WalletTransaction {
	return domain.WalletTransaction{
		TransactionID: rec.TransactionID,
		WalletID:      rec.WalletID,
		Amount:        domain.Amount(rec.Amount),
		Type:          rec.Type,
		RelatedID:     rec.RelatedID,
		Metadata:      rec.Metadata,
		CreatedAt:     rec.CreatedAt,
	}
}

func toDomainContract(rec contractModel) domain.Contract {
	return domain.Contract{
		ContractID:   rec.ContractID,
		ClientID:     rec.ClientID,
		FreelancerID: rec.FreelancerID,
		JobID:        rec.JobID,
		Status:       domain.ContractStatus(rec.Status),
		Amount:       domain.Amount(rec.Amount),
		Currency:     rec.Currency,
		TotalPaid:    domain.Amount(rec.TotalPaid),
		StartDate:    rec.StartDate,
		EndDate:      rec.EndDate,
		SubmittedAt:  rec.SubmittedAt,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func toDomainMilestone(rec milestoneModel) domain.Milestone {
	return domain.Milestone{
		MilestoneID:         rec.MilestoneID,
		ContractID:          rec.ContractID,
		Sequence:            rec.Sequence,
		Title:               rec.Title,
		Description:         rec.Description,
		Amount:              domain.Amount(rec.Amount),
		Currency:            rec.Currency,
		Status:              domain.MilestoneStatus(rec.Status),
		DueDate:             rec.DueDate,
		ApprovedAt:          rec.ApprovedAt,
		SubmittedAt:         rec.SubmittedAt,
		DisputedAt:          rec.DisputedAt,
		DeletionRequestedAt: rec.DeletionRequestedAt,
		PaidAt:              rec.PaidAt,
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
	}
}

func toDomainEscrowAccount(rec escrowAccountModel) domain.EscrowAccount {
	return domain.EscrowAccount{
		EscrowAccountID: rec.EscrowAccountID,
		ContractID:      rec.ContractID,
		ClientID:        rec.ClientID,
		FreelancerID:    rec.FreelancerID,
		HeldAmount:      domain.Amount(rec.HeldAmount),
		InitialAmount:   domain.Amount(rec.InitialAmount),
		Status:          rec.Status,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

func toDomainEscrowTransaction(rec escrowTransactionModel) domain.EscrowTransaction {
	return domain.EscrowTransaction{
		TransactionID:       rec.TransactionID,
		EscrowAccountID:     rec.EscrowAccountID,
		Amount:              domain.Amount(rec.Amount),
		Type:                rec.Type,
		SourceWalletID:      rec.SourceWalletID,
		DestinationWalletID: rec.DestinationWalletID,
		Description:         rec.Description,
		CreatedAt:           rec.CreatedAt,
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
