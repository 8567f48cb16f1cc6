package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

// CreateContract opens a PENDING engagement between the calling client and
// a freelancer. Money does not move here; the escrow account is opened
// when the contract starts.
func (s *Service) CreateContract(ctx context.Context, actor Actor, input CreateContractInput) (domain.Contract, error) {
	if actor.SubjectID == uuid.Nil {
		return domain.Contract{}, domain.ErrUnauthorized
	}
	if actor.Role != domain.RoleClient && actor.Role != domain.RoleAdmin {
		return domain.Contract{}, domain.ErrUnauthorized
	}
	if input.FreelancerID == uuid.Nil || input.JobID == uuid.Nil || !input.Amount.Positive() {
		return domain.Contract{}, domain.ErrInvalidInput
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}

	now := s.nowFn()
	c := domain.Contract{
		ContractID:   uuid.New(),
		ClientID:     actor.SubjectID,
		FreelancerID: input.FreelancerID,
		JobID:        input.JobID,
		Status:       domain.ContractPending,
		Amount:       input.Amount,
		Currency:     currency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	event := s.newOutboxEvent(domain.EventContractCreated, c.ContractID.String(), actor.RequestID, map[string]string{
		"contract_id":   c.ContractID.String(),
		"client_id":     c.ClientID.String(),
		"freelancer_id": c.FreelancerID.String(),
		"job_id":        c.JobID.String(),
	}, now)
	if err := s.contracts.Create(ctx, c, event); err != nil {
		return domain.Contract{}, fmt.Errorf("create contract: %w", err)
	}
	return c, nil
}

// GetContract returns the contract to one of its parties.
func (s *Service) GetContract(ctx context.Context, actor Actor, contractID uuid.UUID) (domain.Contract, error) {
	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return domain.Contract{}, err
	}
	if err := s.requireParty(actor, c); err != nil {
		return domain.Contract{}, err
	}
	return c, nil
}

// StartContract is the freelancer accepting the engagement:
// PENDING -> ACTIVE, stamping the start date and opening the contract's
// escrow account (the escrow-eligible state).
func (s *Service) StartContract(ctx context.Context, actor Actor, contractID uuid.UUID) (domain.Contract, error) {
	return s.transitionContract(ctx, actor, contractID, domain.ContractActive, s.requireFreelancer)
}

// SubmitWork moves an active contract into review: ACTIVE -> REVIEW_PENDING.
func (s *Service) SubmitWork(ctx context.Context, actor Actor, contractID uuid.UUID) (domain.Contract, error) {
	return s.transitionContract(ctx, actor, contractID, domain.ContractReviewPending, s.requireFreelancer)
}

// CompleteContract closes out a reviewed contract: REVIEW_PENDING -> COMPLETED.
func (s *Service) CompleteContract(ctx context.Context, actor Actor, contractID uuid.UUID) (domain.Contract, error) {
	return s.transitionContract(ctx, actor, contractID, domain.ContractCompleted, s.requireClient)
}

// DisputeContract flags a reviewed contract: REVIEW_PENDING -> DISPUTED.
// Either party may raise it.
func (s *Service) DisputeContract(ctx context.Context, actor Actor, contractID uuid.UUID) (domain.Contract, error) {
	return s.transitionContract(ctx, actor, contractID, domain.ContractDisputed, s.requireParty)
}

// TerminateContract ends the engagement from any non-terminal state that
// allows it. Either party may terminate.
func (s *Service) TerminateContract(ctx context.Context, actor Actor, contractID uuid.UUID) (domain.Contract, error) {
	return s.transitionContract(ctx, actor, contractID, domain.ContractTerminated, s.requireParty)
}

func (s *Service) transitionContract(
	ctx context.Context,
	actor Actor,
	contractID uuid.UUID,
	to domain.ContractStatus,
	gate func(Actor, domain.Contract) error,
) (domain.Contract, error) {
	if actor.SubjectID == uuid.Nil {
		return domain.Contract{}, domain.ErrUnauthorized
	}
	if contractID == uuid.Nil {
		return domain.Contract{}, domain.ErrInvalidInput
	}
	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return domain.Contract{}, err
	}
	if err := gate(actor, c); err != nil {
		return domain.Contract{}, err
	}

	from := c.Status
	now := s.nowFn()
	if err := c.ApplyTransition(to, now); err != nil {
		return domain.Contract{}, err
	}
	event := s.contractStatusEvent(c, from, actor.RequestID, now)
	if err := s.contracts.UpdateStatusTx(ctx, c, from, event); err != nil {
		return domain.Contract{}, fmt.Errorf("persist contract transition: %w", err)
	}

	if to == domain.ContractActive {
		if err := s.openEscrowAccount(ctx, c, actor.RequestID, now); err != nil {
			return domain.Contract{}, fmt.Errorf("open escrow account: %w", err)
		}
	}
	return c, nil
}
