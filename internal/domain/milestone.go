package domain

import (
	"time"

	"github.com/google/uuid"
)

type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "PENDING"
	MilestoneInProgress MilestoneStatus = "IN_PROGRESS"
	MilestoneSubmitted  MilestoneStatus = "SUBMITTED"
	MilestoneApproved   MilestoneStatus = "APPROVED"
	MilestonePaid       MilestoneStatus = "PAID"
	MilestoneDisputed   MilestoneStatus = "DISPUTED"
	MilestoneCanceled   MilestoneStatus = "CANCELED"
	MilestoneCompleted  MilestoneStatus = "COMPLETED"
	MilestoneRejected   MilestoneStatus = "REJECTED"
)

// Milestone is a unit of deliverable work nested under a contract.
// Sequence is unique and monotonic per contract, assigned at creation and
// never reused. Deletion goes through the two-party handshake, never a
// unilateral delete.
type Milestone struct {
	MilestoneID         uuid.UUID
	ContractID          uuid.UUID
	Sequence            int
	Title               string
	Description         string
	Amount              Amount
	Currency            string
	Status              MilestoneStatus
	DueDate             *time.Time
	ApprovedAt          *time.Time
	SubmittedAt         *time.Time
	DisputedAt          *time.Time
	DeletionRequestedAt *time.Time
	PaidAt              *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

var milestoneTransitions = map[MilestoneStatus][]MilestoneStatus{
	MilestonePending:    {MilestoneInProgress, MilestoneCanceled},
	MilestoneInProgress: {MilestoneSubmitted, MilestoneCanceled},
	MilestoneSubmitted:  {MilestoneApproved, MilestoneRejected, MilestoneDisputed},
	MilestoneApproved:   {MilestonePaid, MilestoneDisputed},
	MilestonePaid:       {MilestoneCompleted},
	MilestoneDisputed:   {MilestoneApproved, MilestoneRejected},
	MilestoneRejected:   {MilestoneInProgress, MilestoneCanceled},
	MilestoneCanceled:   {},
	MilestoneCompleted:  {},
}

func (s MilestoneStatus) CanTransition(to MilestoneStatus) bool {
	for _, allowed := range milestoneTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// MilestoneStatuses lists every declared milestone status.
func MilestoneStatuses() []MilestoneStatus {
	return []MilestoneStatus{
		MilestonePending, MilestoneInProgress, MilestoneSubmitted,
		MilestoneApproved, MilestonePaid, MilestoneDisputed,
		MilestoneCanceled, MilestoneCompleted, MilestoneRejected,
	}
}

// ApplyTransition validates against the milestone table and applies the
// status plus its side-effect timestamp. allowUnchecked bypasses the table
// check entirely; it exists for privileged corrective operations and is
// always passed explicitly at the call site.
func (m *Milestone) ApplyTransition(to MilestoneStatus, now time.Time, allowUnchecked bool) error {
	if !allowUnchecked && !m.Status.CanTransition(to) {
		return NewTransitionError("milestone", string(m.Status), string(to))
	}
	switch to {
	case MilestoneSubmitted:
		m.SubmittedAt = &now
	case MilestoneApproved:
		m.ApprovedAt = &now
	case MilestoneDisputed:
		m.DisputedAt = &now
	case MilestonePaid:
		m.PaidAt = &now
	}
	m.Status = to
	m.UpdatedAt = now
	return nil
}
