package application

import (
	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

// PartyAccessPolicy is the default membership check: a caller is the
// contract's client, its freelancer, or neither. Admin bypass is decided
// by the operations themselves so the bypass is visible at each call site.
type PartyAccessPolicy struct{}

func (PartyAccessPolicy) RequireClient(c domain.Contract, callerID uuid.UUID) error {
	if c.ClientID != callerID {
		return domain.ErrUnauthorized
	}
	return nil
}

func (PartyAccessPolicy) RequireFreelancer(c domain.Contract, callerID uuid.UUID) error {
	if c.FreelancerID != callerID {
		return domain.ErrUnauthorized
	}
	return nil
}

func (PartyAccessPolicy) RequireParty(c domain.Contract, callerID uuid.UUID) error {
	if c.ClientID != callerID && c.FreelancerID != callerID {
		return domain.ErrUnauthorized
	}
	return nil
}

// requireClient applies the policy with the admin escape hatch.
func (s *Service) requireClient(actor Actor, c domain.Contract) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	return s.access.RequireClient(c, actor.SubjectID)
}

func (s *Service) requireFreelancer(actor Actor, c domain.Contract) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	return s.access.RequireFreelancer(c, actor.SubjectID)
}

func (s *Service) requireParty(actor Actor, c domain.Contract) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	return s.access.RequireParty(c, actor.SubjectID)
}
