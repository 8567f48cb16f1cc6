package http

import (
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

// Core amounts are integer minor units; these mappers are where they become
// major units for the wire.

func toContractResponse(c domain.Contract) contracts.ContractResponse {
	return contracts.ContractResponse{
		ContractID:   c.ContractID.String(),
		ClientID:     c.ClientID.String(),
		FreelancerID: c.FreelancerID.String(),
		JobID:        c.JobID.String(),
		Status:       string(c.Status),
		Amount:       c.Amount.Major(),
		Currency:     c.Currency,
		TotalPaid:    c.TotalPaid.Major(),
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
		SubmittedAt:  c.SubmittedAt,
	}
}

func toMilestoneResponse(m domain.Milestone) contracts.MilestoneResponse {
	return contracts.MilestoneResponse{
		MilestoneID:         m.MilestoneID.String(),
		ContractID:          m.ContractID.String(),
		Sequence:            m.Sequence,
		Title:               m.Title,
		Description:         m.Description,
		Amount:              m.Amount.Major(),
		Currency:            m.Currency,
		Status:              string(m.Status),
		DueDate:             m.DueDate,
		ApprovedAt:          m.ApprovedAt,
		SubmittedAt:         m.SubmittedAt,
		DisputedAt:          m.DisputedAt,
		DeletionRequestedAt: m.DeletionRequestedAt,
		PaidAt:              m.PaidAt,
	}
}

func toEscrowStatusResponse(s application.EscrowStatus) contracts.EscrowStatusResponse {
	return contracts.EscrowStatusResponse{
		ContractID:    s.ContractID.String(),
		HeldAmount:    s.Held.Major(),
		InitialAmount: s.Initial.Major(),
		Status:        s.Status,
	}
}

func toWalletResponse(b application.WalletBalance) contracts.WalletResponse {
	return contracts.WalletResponse{
		UserID:           b.UserID.String(),
		AvailableBalance: b.Available.Major(),
		PendingBalance:   b.Pending.Major(),
		TotalBalance:     b.Total().Major(),
	}
}
