package domain

import (
	"errors"
	"testing"
	"time"
)

func TestContractTransitionTable(t *testing.T) {
	allowed := map[ContractStatus]map[ContractStatus]bool{
		ContractPending:       {ContractActive: true, ContractTerminated: true},
		ContractActive:        {ContractReviewPending: true, ContractTerminated: true},
		ContractReviewPending: {ContractCompleted: true, ContractDisputed: true, ContractTerminated: true},
		ContractDisputed:      {ContractTerminated: true},
		ContractCompleted:     {},
		ContractTerminated:    {},
	}
	for _, from := range ContractStatuses() {
		for _, to := range ContractStatuses() {
			want := allowed[from][to]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestContractApplyTransitionStampsDates(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Contract{Status: ContractPending}

	if err := c.ApplyTransition(ContractActive, now); err != nil {
		t.Fatalf("to ACTIVE: %v", err)
	}
	if c.StartDate == nil || !c.StartDate.Equal(now) {
		t.Fatalf("start date not stamped: %v", c.StartDate)
	}

	later := now.Add(time.Hour)
	if err := c.ApplyTransition(ContractReviewPending, later); err != nil {
		t.Fatalf("to REVIEW_PENDING: %v", err)
	}
	if c.SubmittedAt == nil || !c.SubmittedAt.Equal(later) {
		t.Fatalf("submitted at not stamped: %v", c.SubmittedAt)
	}

	end := later.Add(time.Hour)
	if err := c.ApplyTransition(ContractCompleted, end); err != nil {
		t.Fatalf("to COMPLETED: %v", err)
	}
	if c.EndDate == nil || !c.EndDate.Equal(end) {
		t.Fatalf("end date not stamped: %v", c.EndDate)
	}
}

func TestContractApplyTransitionRejectsIllegal(t *testing.T) {
	c := Contract{Status: ContractCompleted}
	err := c.ApplyTransition(ContractActive, time.Now().UTC())
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	var transition *StateTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("expected StateTransitionError, got %T", err)
	}
	if transition.Entity != "contract" || transition.From != "COMPLETED" || transition.To != "ACTIVE" {
		t.Fatalf("unexpected transition detail: %+v", transition)
	}
	if c.Status != ContractCompleted {
		t.Fatalf("status mutated on rejected transition: %s", c.Status)
	}
}

func TestContractActionable(t *testing.T) {
	actionable := map[ContractStatus]bool{ContractPending: true, ContractActive: true}
	for _, status := range ContractStatuses() {
		c := Contract{Status: status}
		if got := c.Actionable(); got != actionable[status] {
			t.Errorf("%s actionable: got %v, want %v", status, got, actionable[status])
		}
	}
}
