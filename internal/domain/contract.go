package domain

import (
	"time"

	"github.com/google/uuid"
)

type ContractStatus string

const (
	ContractPending       ContractStatus = "PENDING"
	ContractActive        ContractStatus = "ACTIVE"
	ContractReviewPending ContractStatus = "REVIEW_PENDING"
	ContractCompleted     ContractStatus = "COMPLETED"
	ContractDisputed      ContractStatus = "DISPUTED"
	ContractTerminated    ContractStatus = "TERMINATED"
)

// Contract is the engagement between a client and a freelancer for a job.
// Status only moves along contractTransitions; amounts are minor units.
type Contract struct {
	ContractID   uuid.UUID
	ClientID     uuid.UUID
	FreelancerID uuid.UUID
	JobID        uuid.UUID
	Status       ContractStatus
	Amount       Amount
	Currency     string
	TotalPaid    Amount
	StartDate    *time.Time
	EndDate      *time.Time
	SubmittedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var contractTransitions = map[ContractStatus][]ContractStatus{
	ContractPending:       {ContractActive, ContractTerminated},
	ContractActive:        {ContractReviewPending, ContractTerminated},
	ContractReviewPending: {ContractCompleted, ContractDisputed, ContractTerminated},
	ContractDisputed:      {ContractTerminated},
	ContractCompleted:     {},
	ContractTerminated:    {},
}

// CanTransition reports whether the contract table allows from -> to.
func (s ContractStatus) CanTransition(to ContractStatus) bool {
	for _, allowed := range contractTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ContractStatuses lists every declared contract status, in table order.
func ContractStatuses() []ContractStatus {
	return []ContractStatus{
		ContractPending, ContractActive, ContractReviewPending,
		ContractCompleted, ContractDisputed, ContractTerminated,
	}
}

// ApplyTransition validates the requested status change against the
// transition table and applies it together with the transition's
// side-effect timestamp. All other fields are untouched. Illegal
// transitions are rejected before any mutation.
func (c *Contract) ApplyTransition(to ContractStatus, now time.Time) error {
	if !c.Status.CanTransition(to) {
		return NewTransitionError("contract", string(c.Status), string(to))
	}
	switch to {
	case ContractActive:
		c.StartDate = &now
	case ContractReviewPending:
		c.SubmittedAt = &now
	case ContractCompleted, ContractTerminated:
		c.EndDate = &now
	}
	c.Status = to
	c.UpdatedAt = now
	return nil
}

// Actionable reports whether milestone mutations under this contract may
// proceed.
func (c Contract) Actionable() bool {
	return c.Status == ContractActive || c.Status == ContractPending
}
