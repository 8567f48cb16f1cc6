package domain

import (
	"errors"
	"testing"
	"time"
)

func TestMilestoneTransitionTable(t *testing.T) {
	allowed := map[MilestoneStatus]map[MilestoneStatus]bool{
		MilestonePending:    {MilestoneInProgress: true, MilestoneCanceled: true},
		MilestoneInProgress: {MilestoneSubmitted: true, MilestoneCanceled: true},
		MilestoneSubmitted:  {MilestoneApproved: true, MilestoneRejected: true, MilestoneDisputed: true},
		MilestoneApproved:   {MilestonePaid: true, MilestoneDisputed: true},
		MilestonePaid:       {MilestoneCompleted: true},
		MilestoneDisputed:   {MilestoneApproved: true, MilestoneRejected: true},
		MilestoneRejected:   {MilestoneInProgress: true, MilestoneCanceled: true},
		MilestoneCanceled:   {},
		MilestoneCompleted:  {},
	}
	for _, from := range MilestoneStatuses() {
		for _, to := range MilestoneStatuses() {
			want := allowed[from][to]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestMilestoneApplyTransitionStampsTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m := Milestone{Status: MilestoneInProgress}

	if err := m.ApplyTransition(MilestoneSubmitted, now, false); err != nil {
		t.Fatalf("to SUBMITTED: %v", err)
	}
	if m.SubmittedAt == nil || !m.SubmittedAt.Equal(now) {
		t.Fatalf("submitted at not stamped: %v", m.SubmittedAt)
	}

	approveAt := now.Add(time.Hour)
	if err := m.ApplyTransition(MilestoneApproved, approveAt, false); err != nil {
		t.Fatalf("to APPROVED: %v", err)
	}
	if m.ApprovedAt == nil || !m.ApprovedAt.Equal(approveAt) {
		t.Fatalf("approved at not stamped: %v", m.ApprovedAt)
	}

	payAt := approveAt.Add(time.Hour)
	if err := m.ApplyTransition(MilestonePaid, payAt, false); err != nil {
		t.Fatalf("to PAID: %v", err)
	}
	if m.PaidAt == nil || !m.PaidAt.Equal(payAt) {
		t.Fatalf("paid at not stamped: %v", m.PaidAt)
	}
}

func TestMilestoneApplyTransitionRejectsIllegal(t *testing.T) {
	m := Milestone{Status: MilestonePending}
	err := m.ApplyTransition(MilestoneSubmitted, time.Now().UTC(), false)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if m.Status != MilestonePending {
		t.Fatalf("status mutated on rejected transition: %s", m.Status)
	}
}

func TestMilestoneAllowUncheckedBypassesTable(t *testing.T) {
	now := time.Now().UTC()
	m := Milestone{Status: MilestonePending}
	if err := m.ApplyTransition(MilestonePaid, now, true); err != nil {
		t.Fatalf("unchecked transition: %v", err)
	}
	if m.Status != MilestonePaid {
		t.Fatalf("expected PAID, got %s", m.Status)
	}
	if m.PaidAt == nil {
		t.Fatal("paid at not stamped on unchecked transition")
	}
}

func TestDisputeResolutionPaths(t *testing.T) {
	m := Milestone{Status: MilestoneDisputed}
	if err := m.ApplyTransition(MilestoneApproved, time.Now().UTC(), false); err != nil {
		t.Fatalf("DISPUTED -> APPROVED: %v", err)
	}

	m = Milestone{Status: MilestoneDisputed}
	if err := m.ApplyTransition(MilestoneRejected, time.Now().UTC(), false); err != nil {
		t.Fatalf("DISPUTED -> REJECTED: %v", err)
	}
	if err := m.ApplyTransition(MilestoneInProgress, time.Now().UTC(), false); err != nil {
		t.Fatalf("REJECTED -> IN_PROGRESS rework: %v", err)
	}
}
