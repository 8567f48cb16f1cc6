package ports

import (
	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

// AccessPolicy decides whether a caller is the required party to a
// contract. Both state machines consult it before touching state; the
// checks are pure so policy stays testable apart from storage.
type AccessPolicy interface {
	RequireClient(c domain.Contract, callerID uuid.UUID) error
	RequireFreelancer(c domain.Contract, callerID uuid.UUID) error
	RequireParty(c domain.Contract, callerID uuid.UUID) error
}
