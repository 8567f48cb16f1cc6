package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/ports"
)

// milestoneContext is the resolved surroundings of a milestone operation:
// the milestone, its parent contract, and an actionability check already
// applied. Every milestone mutation starts here.
type milestoneContext struct {
	Milestone domain.Milestone
	Contract  domain.Contract
}

func (s *Service) resolveMilestone(ctx context.Context, milestoneID uuid.UUID) (milestoneContext, error) {
	if milestoneID == uuid.Nil {
		return milestoneContext{}, domain.ErrInvalidInput
	}
	m, err := s.milestones.GetByID(ctx, milestoneID)
	if err != nil {
		return milestoneContext{}, err
	}
	c, err := s.contracts.GetByID(ctx, m.ContractID)
	if err != nil {
		return milestoneContext{}, err
	}
	if !c.Actionable() {
		return milestoneContext{}, domain.ErrContractNotActionable
	}
	return milestoneContext{Milestone: m, Contract: c}, nil
}

// CreateMilestone appends a deliverable to an actionable contract. Sequence
// is assigned inside the create transaction from a per-contract counter that
// only grows, so concurrent creates cannot collide and a deleted milestone's
// number is never reissued.
func (s *Service) CreateMilestone(ctx context.Context, actor Actor, input CreateMilestoneInput) (domain.Milestone, error) {
	if actor.SubjectID == uuid.Nil {
		return domain.Milestone{}, domain.ErrUnauthorized
	}
	if input.ContractID == uuid.Nil || strings.TrimSpace(input.Title) == "" || !input.Amount.Positive() {
		return domain.Milestone{}, domain.ErrInvalidInput
	}
	c, err := s.contracts.GetByID(ctx, input.ContractID)
	if err != nil {
		return domain.Milestone{}, err
	}
	if !c.Actionable() {
		return domain.Milestone{}, domain.ErrContractNotActionable
	}
	if err := s.requireClient(actor, c); err != nil {
		return domain.Milestone{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = c.Currency
	}

	now := s.nowFn()
	m := domain.Milestone{
		MilestoneID: uuid.New(),
		ContractID:  c.ContractID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Amount:      input.Amount,
		Currency:    currency,
		Status:      domain.MilestonePending,
		DueDate:     input.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	event := s.newOutboxEvent(domain.EventMilestoneCreated, c.ContractID.String(), actor.RequestID, map[string]string{
		"milestone_id": m.MilestoneID.String(),
		"contract_id":  c.ContractID.String(),
	}, now)
	created, err := s.milestones.CreateTx(ctx, m, event)
	if err != nil {
		return domain.Milestone{}, fmt.Errorf("create milestone: %w", err)
	}
	return created, nil
}

// GetMilestone returns a milestone to either party of its contract. Reads
// do not require the contract to be actionable.
func (s *Service) GetMilestone(ctx context.Context, actor Actor, milestoneID uuid.UUID) (domain.Milestone, error) {
	if milestoneID == uuid.Nil {
		return domain.Milestone{}, domain.ErrInvalidInput
	}
	m, err := s.milestones.GetByID(ctx, milestoneID)
	if err != nil {
		return domain.Milestone{}, err
	}
	c, err := s.contracts.GetByID(ctx, m.ContractID)
	if err != nil {
		return domain.Milestone{}, err
	}
	if err := s.requireParty(actor, c); err != nil {
		return domain.Milestone{}, err
	}
	return m, nil
}

// ListMilestones returns the contract's milestones in sequence order.
func (s *Service) ListMilestones(ctx context.Context, actor Actor, contractID uuid.UUID) ([]domain.Milestone, error) {
	if contractID == uuid.Nil {
		return nil, domain.ErrInvalidInput
	}
	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParty(actor, c); err != nil {
		return nil, err
	}
	return s.milestones.ListByContractID(ctx, contractID)
}

// UpdateMilestone edits title, description, amount, and due date. Edits are
// allowed only while the milestone is still PENDING; once work has started
// the terms are frozen.
func (s *Service) UpdateMilestone(ctx context.Context, actor Actor, input UpdateMilestoneInput) (domain.Milestone, error) {
	if actor.SubjectID == uuid.Nil {
		return domain.Milestone{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(input.Title) == "" || !input.Amount.Positive() {
		return domain.Milestone{}, domain.ErrInvalidInput
	}
	mc, err := s.resolveMilestone(ctx, input.MilestoneID)
	if err != nil {
		return domain.Milestone{}, err
	}
	if err := s.requireClient(actor, mc.Contract); err != nil {
		return domain.Milestone{}, err
	}
	if mc.Milestone.Status != domain.MilestonePending {
		return domain.Milestone{}, domain.NewTransitionError("milestone", string(mc.Milestone.Status), string(domain.MilestonePending))
	}

	m := mc.Milestone
	m.Title = strings.TrimSpace(input.Title)
	m.Description = input.Description
	m.Amount = input.Amount
	m.DueDate = input.DueDate
	m.UpdatedAt = s.nowFn()
	if err := s.milestones.UpdateFields(ctx, m); err != nil {
		return domain.Milestone{}, err
	}
	return m, nil
}

// StartMilestone is the freelancer accepting the work: PENDING -> IN_PROGRESS.
func (s *Service) StartMilestone(ctx context.Context, actor Actor, input MilestoneTransitionInput) (domain.Milestone, error) {
	return s.transitionMilestone(ctx, actor, input, domain.MilestoneInProgress, s.requireFreelancer)
}

// SubmitMilestone hands finished work over for review: IN_PROGRESS -> SUBMITTED.
func (s *Service) SubmitMilestone(ctx context.Context, actor Actor, input MilestoneTransitionInput) (domain.Milestone, error) {
	return s.transitionMilestone(ctx, actor, input, domain.MilestoneSubmitted, s.requireFreelancer)
}

// ApproveMilestone is the client accepting submitted work, or a dispute
// being resolved in the freelancer's favor: {SUBMITTED,DISPUTED} -> APPROVED.
func (s *Service) ApproveMilestone(ctx context.Context, actor Actor, input MilestoneTransitionInput) (domain.Milestone, error) {
	return s.transitionMilestone(ctx, actor, input, domain.MilestoneApproved, s.requireClient)
}

// RejectMilestone sends work back: {SUBMITTED,DISPUTED} -> REJECTED. The
// freelancer owns the rejection acknowledgement.
func (s *Service) RejectMilestone(ctx context.Context, actor Actor, input MilestoneTransitionInput) (domain.Milestone, error) {
	return s.transitionMilestone(ctx, actor, input, domain.MilestoneRejected, s.requireFreelancer)
}

// DisputeMilestone escalates submitted or approved work: -> DISPUTED.
func (s *Service) DisputeMilestone(ctx context.Context, actor Actor, input MilestoneTransitionInput) (domain.Milestone, error) {
	return s.transitionMilestone(ctx, actor, input, domain.MilestoneDisputed, s.requireClient)
}

// CancelMilestone abandons work that has not been paid: -> CANCELED.
func (s *Service) CancelMilestone(ctx context.Context, actor Actor, input MilestoneTransitionInput) (domain.Milestone, error) {
	return s.transitionMilestone(ctx, actor, input, domain.MilestoneCanceled, s.requireClient)
}

// CompleteMilestone closes out a paid milestone: PAID -> COMPLETED.
func (s *Service) CompleteMilestone(ctx context.Context, actor Actor, input MilestoneTransitionInput) (domain.Milestone, error) {
	return s.transitionMilestone(ctx, actor, input, domain.MilestoneCompleted, s.requireClient)
}

// PayMilestone releases the milestone amount from escrow to the freelancer
// and records APPROVED -> PAID, accruing the contract's total paid. The
// release and the status change commit in one repository transaction; a
// failed attempt leaves its idempotency reservation incomplete, and a
// retry with the same key and body re-enters the operation cleanly.
func (s *Service) PayMilestone(ctx context.Context, actor Actor, input MilestoneTransitionInput) (domain.Milestone, error) {
	if actor.SubjectID == uuid.Nil {
		return domain.Milestone{}, domain.ErrUnauthorized
	}
	mc, err := s.resolveMilestone(ctx, input.MilestoneID)
	if err != nil {
		return domain.Milestone{}, err
	}
	if err := s.requireClient(actor, mc.Contract); err != nil {
		return domain.Milestone{}, err
	}
	if err := s.requireActiveFreelancer(ctx, mc.Contract.FreelancerID); err != nil {
		return domain.Milestone{}, err
	}
	// Replay is checked before the transition gate: a completed payment has
	// already moved the milestone to PAID, and the cached response is the
	// right answer for its key.
	requestHash := hashJSON(input)
	var cached domain.Milestone
	if ok, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil {
		return domain.Milestone{}, err
	} else if ok {
		return cached, nil
	}

	allowUnchecked := input.AllowUnchecked && actor.Role == domain.RoleAdmin
	if !allowUnchecked && !mc.Milestone.Status.CanTransition(domain.MilestonePaid) {
		return domain.Milestone{}, domain.NewTransitionError("milestone", string(mc.Milestone.Status), string(domain.MilestonePaid))
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Milestone{}, err
	}

	now := s.nowFn()
	from := mc.Milestone.Status
	m := mc.Milestone
	if err := m.ApplyTransition(domain.MilestonePaid, now, allowUnchecked); err != nil {
		return domain.Milestone{}, err
	}
	description := fmt.Sprintf("milestone %d payment", m.Sequence)
	_, err = s.milestones.PayTx(ctx, ports.MilestonePayParams{
		Milestone:     m,
		Expected:      from,
		Description:   description,
		OccurredAt:    now,
		ReleaseOutbox: s.newPendingEscrowEvent(domain.EventEscrowReleased, m.ContractID, m.Amount, domain.EscrowTxRelease, actor.RequestID, now),
		StatusOutbox:  s.milestoneStatusEvent(m, from, actor.RequestID, now),
	})
	if err != nil {
		return domain.Milestone{}, fmt.Errorf("pay milestone: %w", err)
	}
	s.invalidateBalances(ctx, mc.Contract.FreelancerID, mc.Contract.ContractID)

	s.completeIdempotency(ctx, actor.IdempotencyKey, m)
	return m, nil
}

// RequestDeletion is phase one of the deletion handshake: the client stamps
// the request on the milestone. Nothing is removed yet.
func (s *Service) RequestDeletion(ctx context.Context, actor Actor, milestoneID uuid.UUID) (domain.Milestone, error) {
	if actor.SubjectID == uuid.Nil {
		return domain.Milestone{}, domain.ErrUnauthorized
	}
	mc, err := s.resolveMilestone(ctx, milestoneID)
	if err != nil {
		return domain.Milestone{}, err
	}
	if err := s.requireClient(actor, mc.Contract); err != nil {
		return domain.Milestone{}, err
	}

	now := s.nowFn()
	if err := s.milestones.MarkDeletionRequested(ctx, milestoneID, now); err != nil {
		return domain.Milestone{}, err
	}
	m := mc.Milestone
	m.DeletionRequestedAt = &now
	m.UpdatedAt = now
	return m, nil
}

// AcceptRequestDeletion is phase two: the freelancer consents and the row
// is removed. Without a prior request the call fails, which is what makes
// the handshake two-party.
func (s *Service) AcceptRequestDeletion(ctx context.Context, actor Actor, milestoneID uuid.UUID) error {
	if actor.SubjectID == uuid.Nil {
		return domain.ErrUnauthorized
	}
	mc, err := s.resolveMilestone(ctx, milestoneID)
	if err != nil {
		return err
	}
	if err := s.requireFreelancer(actor, mc.Contract); err != nil {
		return err
	}
	if mc.Milestone.DeletionRequestedAt == nil {
		return domain.ErrNoDeletionRequest
	}

	now := s.nowFn()
	event := s.newOutboxEvent(domain.EventMilestoneDeleted, mc.Contract.ContractID.String(), actor.RequestID, contracts.MilestoneDeletedPayload{
		MilestoneID: mc.Milestone.MilestoneID.String(),
		ContractID:  mc.Contract.ContractID.String(),
		Sequence:    mc.Milestone.Sequence,
		DeletedAt:   now.Format(time.RFC3339Nano),
	}, now)
	return s.milestones.DeleteTx(ctx, milestoneID, event)
}

func (s *Service) transitionMilestone(
	ctx context.Context,
	actor Actor,
	input MilestoneTransitionInput,
	to domain.MilestoneStatus,
	gate func(Actor, domain.Contract) error,
) (domain.Milestone, error) {
	if actor.SubjectID == uuid.Nil {
		return domain.Milestone{}, domain.ErrUnauthorized
	}
	mc, err := s.resolveMilestone(ctx, input.MilestoneID)
	if err != nil {
		return domain.Milestone{}, err
	}
	if err := gate(actor, mc.Contract); err != nil {
		return domain.Milestone{}, err
	}

	// The override is honored for admins only; a party passing the flag
	// still goes through the table.
	allowUnchecked := input.AllowUnchecked && actor.Role == domain.RoleAdmin
	from := mc.Milestone.Status
	now := s.nowFn()
	m := mc.Milestone
	if err := m.ApplyTransition(to, now, allowUnchecked); err != nil {
		return domain.Milestone{}, err
	}
	err = s.milestones.UpdateStatusTx(ctx, ports.MilestoneStatusParams{
		Milestone: m,
		Expected:  from,
		Outbox:    s.milestoneStatusEvent(m, from, actor.RequestID, now),
	})
	if err != nil {
		return domain.Milestone{}, fmt.Errorf("persist milestone transition: %w", err)
	}
	return m, nil
}
