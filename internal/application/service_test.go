package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

type fixture struct {
	svc        *application.Service
	store      *memory.Store
	client     uuid.UUID
	freelancer uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	client := uuid.New()
	freelancer := uuid.New()
	store.SeedUser(domain.WalletUser{UserID: client, Role: domain.RoleClient, IsActive: true})
	store.SeedUser(domain.WalletUser{UserID: freelancer, Role: domain.RoleFreelancer, IsActive: true})
	store.SeedWallet(client, 15000, 0)
	store.SeedWallet(freelancer, 0, 0)
	svc := application.NewService(application.Dependencies{
		Wallets:     store.Wallets(),
		Escrows:     store.Escrows(),
		Contracts:   store.Contracts(),
		Milestones:  store.Milestones(),
		Users:       store.Users(),
		Idempotency: store.Idempotency(),
	})
	return &fixture{svc: svc, store: store, client: client, freelancer: freelancer}
}

func (f *fixture) clientActor(key string) application.Actor {
	return application.Actor{SubjectID: f.client, Role: domain.RoleClient, RequestID: "req-" + key, IdempotencyKey: key}
}

func (f *fixture) freelancerActor(key string) application.Actor {
	return application.Actor{SubjectID: f.freelancer, Role: domain.RoleFreelancer, RequestID: "req-" + key, IdempotencyKey: key}
}

func adminActor(key string) application.Actor {
	return application.Actor{SubjectID: uuid.New(), Role: domain.RoleAdmin, RequestID: "req-" + key, IdempotencyKey: key}
}

// startedContract creates a contract as the client and starts it as the
// freelancer, which also opens the escrow account.
func startedContract(t *testing.T, f *fixture) domain.Contract {
	t.Helper()
	ctx := context.Background()
	c, err := f.svc.CreateContract(ctx, f.clientActor(""), application.CreateContractInput{
		FreelancerID: f.freelancer,
		JobID:        uuid.New(),
		Amount:       10000,
	})
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}
	c, err = f.svc.StartContract(ctx, f.freelancerActor(""), c.ContractID)
	if err != nil {
		t.Fatalf("StartContract: %v", err)
	}
	return c
}

func TestContractLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.CreateContract(ctx, f.clientActor(""), application.CreateContractInput{
		FreelancerID: f.freelancer,
		JobID:        uuid.New(),
		Amount:       10000,
		Currency:     "usd",
	})
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}
	if c.Status != domain.ContractPending || c.Currency != "USD" {
		t.Fatalf("unexpected contract: %+v", c)
	}

	c, err = f.svc.StartContract(ctx, f.freelancerActor(""), c.ContractID)
	if err != nil {
		t.Fatalf("StartContract: %v", err)
	}
	if c.Status != domain.ContractActive || c.StartDate == nil {
		t.Fatalf("expected ACTIVE with start date, got %+v", c)
	}

	status, err := f.svc.GetEscrowStatus(ctx, f.clientActor(""), c.ContractID)
	if err != nil {
		t.Fatalf("GetEscrowStatus: %v", err)
	}
	if !status.Present || status.Status != domain.EscrowStatusActive {
		t.Fatalf("escrow account not opened on start: %+v", status)
	}

	c, err = f.svc.SubmitWork(ctx, f.freelancerActor(""), c.ContractID)
	if err != nil {
		t.Fatalf("SubmitWork: %v", err)
	}
	if c.Status != domain.ContractReviewPending || c.SubmittedAt == nil {
		t.Fatalf("expected REVIEW_PENDING, got %+v", c)
	}

	c, err = f.svc.CompleteContract(ctx, f.clientActor(""), c.ContractID)
	if err != nil {
		t.Fatalf("CompleteContract: %v", err)
	}
	if c.Status != domain.ContractCompleted || c.EndDate == nil {
		t.Fatalf("expected COMPLETED with end date, got %+v", c)
	}
}

func TestContractRoleGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateContract(ctx, f.freelancerActor(""), application.CreateContractInput{
		FreelancerID: f.freelancer, JobID: uuid.New(), Amount: 100,
	}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("freelancer creating contract: %v", err)
	}

	c, err := f.svc.CreateContract(ctx, f.clientActor(""), application.CreateContractInput{
		FreelancerID: f.freelancer, JobID: uuid.New(), Amount: 100,
	})
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}

	if _, err := f.svc.StartContract(ctx, f.clientActor(""), c.ContractID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("client starting contract: %v", err)
	}

	stranger := application.Actor{SubjectID: uuid.New(), Role: domain.RoleClient}
	if _, err := f.svc.GetContract(ctx, stranger, c.ContractID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger reading contract: %v", err)
	}
	if _, err := f.svc.GetContract(ctx, adminActor(""), c.ContractID); err != nil {
		t.Fatalf("admin reading contract: %v", err)
	}
}

func TestContractInvalidTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	// ACTIVE -> COMPLETED skips review.
	_, err := f.svc.CompleteContract(ctx, f.clientActor(""), c.ContractID)
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestDepositMovesClientFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	status, err := f.svc.Deposit(ctx, f.clientActor("dep-1"), application.DepositInput{ContractID: c.ContractID, Amount: 10000})
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if status.Held != 10000 {
		t.Fatalf("held = %d, want 10000", status.Held)
	}
	wallet, _ := f.store.WalletSnapshot(f.client)
	if wallet.AvailableBalance != 5000 {
		t.Fatalf("client available = %d, want 5000", wallet.AvailableBalance)
	}

	holds := 0
	for _, tx := range f.store.WalletTransactions() {
		if tx.Type == domain.WalletTxHold {
			holds++
		}
	}
	if holds != 1 {
		t.Fatalf("expected 1 HOLD audit row, got %d", holds)
	}
	deposits := 0
	for _, tx := range f.store.EscrowTransactions() {
		if tx.Type == domain.EscrowTxDeposit {
			deposits++
		}
	}
	if deposits != 1 {
		t.Fatalf("expected 1 DEPOSIT escrow row, got %d", deposits)
	}
}

func TestDepositInsufficientFundsLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	walletTxBefore := len(f.store.WalletTransactions())
	escrowTxBefore := len(f.store.EscrowTransactions())

	_, err := f.svc.Deposit(ctx, f.clientActor("dep-over"), application.DepositInput{ContractID: c.ContractID, Amount: 20000})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	wallet, _ := f.store.WalletSnapshot(f.client)
	if wallet.AvailableBalance != 15000 {
		t.Fatalf("client balance mutated on failed deposit: %d", wallet.AvailableBalance)
	}
	if len(f.store.WalletTransactions()) != walletTxBefore || len(f.store.EscrowTransactions()) != escrowTxBefore {
		t.Fatal("audit rows written for a failed deposit")
	}
}

func TestReleaseAndRefundBalanceTheLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	if _, err := f.svc.Deposit(ctx, f.clientActor("dep-1"), application.DepositInput{ContractID: c.ContractID, Amount: 10000}); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	status, err := f.svc.Release(ctx, f.clientActor("rel-1"), application.ReleaseInput{ContractID: c.ContractID, Amount: 4000})
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if status.Held != 6000 {
		t.Fatalf("held after release = %d, want 6000", status.Held)
	}
	status, err = f.svc.Refund(ctx, f.clientActor("ref-1"), application.RefundInput{ContractID: c.ContractID, Amount: 3000})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}

	// held = initial + deposits - releases - refunds
	if status.Held != 3000 {
		t.Fatalf("held after refund = %d, want 3000", status.Held)
	}
	clientWallet, _ := f.store.WalletSnapshot(f.client)
	freelancerWallet, _ := f.store.WalletSnapshot(f.freelancer)
	if clientWallet.AvailableBalance != 8000 {
		t.Fatalf("client available = %d, want 8000", clientWallet.AvailableBalance)
	}
	if freelancerWallet.PendingBalance != 4000 {
		t.Fatalf("freelancer pending = %d, want 4000", freelancerWallet.PendingBalance)
	}
	total := clientWallet.AvailableBalance + freelancerWallet.PendingBalance + status.Held
	if total != 15000 {
		t.Fatalf("money created or destroyed: total %d", total)
	}
}

func TestReleaseRequiresClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	if _, err := f.svc.Deposit(ctx, f.clientActor("dep-1"), application.DepositInput{ContractID: c.ContractID, Amount: 5000}); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	_, err := f.svc.Release(ctx, f.freelancerActor("rel-x"), application.ReleaseInput{ContractID: c.ContractID, Amount: 1000})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("freelancer releasing escrow: %v", err)
	}
}

func TestReleaseBeyondHeldFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	if _, err := f.svc.Deposit(ctx, f.clientActor("dep-1"), application.DepositInput{ContractID: c.ContractID, Amount: 5000}); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	_, err := f.svc.Release(ctx, f.clientActor("rel-over"), application.ReleaseInput{ContractID: c.ContractID, Amount: 6000})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestDepositIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	input := application.DepositInput{ContractID: c.ContractID, Amount: 2500}
	first, err := f.svc.Deposit(ctx, f.clientActor("dep-same"), input)
	if err != nil {
		t.Fatalf("Deposit first: %v", err)
	}
	rowsAfterFirst := len(f.store.WalletTransactions())

	second, err := f.svc.Deposit(ctx, f.clientActor("dep-same"), input)
	if err != nil {
		t.Fatalf("Deposit replay: %v", err)
	}
	if first.Held != second.Held {
		t.Fatalf("replay mismatch: first=%+v second=%+v", first, second)
	}
	if len(f.store.WalletTransactions()) != rowsAfterFirst {
		t.Fatal("replay moved money again")
	}
}

func TestDepositIdempotencyKeyRequired(t *testing.T) {
	f := newFixture(t)
	c := startedContract(t, f)

	actor := f.clientActor("")
	_, err := f.svc.Deposit(context.Background(), actor, application.DepositInput{ContractID: c.ContractID, Amount: 100})
	if !errors.Is(err, domain.ErrIdempotencyRequired) {
		t.Fatalf("expected idempotency key required, got %v", err)
	}
}

func TestIdempotencyKeyReuseWithDifferentBody(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	if _, err := f.svc.Deposit(ctx, f.clientActor("dep-key"), application.DepositInput{ContractID: c.ContractID, Amount: 1000}); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	_, err := f.svc.Deposit(ctx, f.clientActor("dep-key"), application.DepositInput{ContractID: c.ContractID, Amount: 2000})
	if !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestMilestoneLifecycleWithPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	if _, err := f.svc.Deposit(ctx, f.clientActor("dep-1"), application.DepositInput{ContractID: c.ContractID, Amount: 10000}); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	m, err := f.svc.CreateMilestone(ctx, f.clientActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "design", Amount: 4000,
	})
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	if m.Sequence != 1 || m.Status != domain.MilestonePending || m.Currency != "USD" {
		t.Fatalf("unexpected milestone: %+v", m)
	}
	second, err := f.svc.CreateMilestone(ctx, f.clientActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "build", Amount: 6000,
	})
	if err != nil {
		t.Fatalf("CreateMilestone second: %v", err)
	}
	if second.Sequence != 2 {
		t.Fatalf("second sequence = %d, want 2", second.Sequence)
	}

	step := func(name string, fn func() (domain.Milestone, error), want domain.MilestoneStatus) {
		t.Helper()
		got, err := fn()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got.Status != want {
			t.Fatalf("%s: status %s, want %s", name, got.Status, want)
		}
		m = got
	}
	input := application.MilestoneTransitionInput{MilestoneID: m.MilestoneID}
	step("start", func() (domain.Milestone, error) {
		return f.svc.StartMilestone(ctx, f.freelancerActor(""), input)
	}, domain.MilestoneInProgress)
	step("submit", func() (domain.Milestone, error) {
		return f.svc.SubmitMilestone(ctx, f.freelancerActor(""), input)
	}, domain.MilestoneSubmitted)
	step("approve", func() (domain.Milestone, error) {
		return f.svc.ApproveMilestone(ctx, f.clientActor(""), input)
	}, domain.MilestoneApproved)
	step("pay", func() (domain.Milestone, error) {
		return f.svc.PayMilestone(ctx, f.clientActor("pay-1"), input)
	}, domain.MilestonePaid)
	if m.PaidAt == nil {
		t.Fatal("paid at not stamped")
	}

	contract, err := f.svc.GetContract(ctx, f.clientActor(""), c.ContractID)
	if err != nil {
		t.Fatalf("GetContract: %v", err)
	}
	if contract.TotalPaid != 4000 {
		t.Fatalf("total paid = %d, want 4000", contract.TotalPaid)
	}
	freelancerWallet, _ := f.store.WalletSnapshot(f.freelancer)
	if freelancerWallet.PendingBalance != 4000 {
		t.Fatalf("freelancer pending = %d, want 4000", freelancerWallet.PendingBalance)
	}
	status, err := f.svc.GetEscrowStatus(ctx, f.clientActor(""), c.ContractID)
	if err != nil {
		t.Fatalf("GetEscrowStatus: %v", err)
	}
	if status.Held != 6000 {
		t.Fatalf("held = %d, want 6000", status.Held)
	}

	step("complete", func() (domain.Milestone, error) {
		return f.svc.CompleteMilestone(ctx, f.clientActor(""), input)
	}, domain.MilestoneCompleted)
}

func TestPayMilestoneRetryAfterFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	if _, err := f.svc.Deposit(ctx, f.clientActor("dep-1"), application.DepositInput{ContractID: c.ContractID, Amount: 3000}); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	m, err := f.svc.CreateMilestone(ctx, f.clientActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "design", Amount: 4000,
	})
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	input := application.MilestoneTransitionInput{MilestoneID: m.MilestoneID}
	if _, err := f.svc.StartMilestone(ctx, f.freelancerActor(""), input); err != nil {
		t.Fatalf("StartMilestone: %v", err)
	}
	if _, err := f.svc.SubmitMilestone(ctx, f.freelancerActor(""), input); err != nil {
		t.Fatalf("SubmitMilestone: %v", err)
	}
	if _, err := f.svc.ApproveMilestone(ctx, f.clientActor(""), input); err != nil {
		t.Fatalf("ApproveMilestone: %v", err)
	}

	// Escrow only holds 3000, so the first attempt fails after reserving
	// its idempotency key.
	_, err = f.svc.PayMilestone(ctx, f.clientActor("pay-1"), input)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	got, err := f.svc.GetMilestone(ctx, f.clientActor(""), m.MilestoneID)
	if err != nil {
		t.Fatalf("GetMilestone: %v", err)
	}
	if got.Status != domain.MilestoneApproved {
		t.Fatalf("status after failed pay = %s, want APPROVED", got.Status)
	}

	if _, err := f.svc.Deposit(ctx, f.clientActor("dep-2"), application.DepositInput{ContractID: c.ContractID, Amount: 7000}); err != nil {
		t.Fatalf("Deposit top-up: %v", err)
	}

	// Retry with the same key re-enters the operation instead of hitting
	// the dangling reservation.
	paid, err := f.svc.PayMilestone(ctx, f.clientActor("pay-1"), input)
	if err != nil {
		t.Fatalf("PayMilestone retry: %v", err)
	}
	if paid.Status != domain.MilestonePaid || paid.PaidAt == nil {
		t.Fatalf("unexpected milestone after retry: %+v", paid)
	}
	releases := 0
	for _, tx := range f.store.EscrowTransactions() {
		if tx.Type == domain.EscrowTxRelease {
			releases++
		}
	}
	if releases != 1 {
		t.Fatalf("expected 1 RELEASE escrow row, got %d", releases)
	}

	// A further call with the same key replays the cached response.
	replayed, err := f.svc.PayMilestone(ctx, f.clientActor("pay-1"), input)
	if err != nil {
		t.Fatalf("PayMilestone replay: %v", err)
	}
	if replayed.Status != domain.MilestonePaid {
		t.Fatalf("replay status = %s, want PAID", replayed.Status)
	}
	for _, tx := range f.store.EscrowTransactions() {
		if tx.Type == domain.EscrowTxRelease {
			releases--
		}
	}
	if releases != 0 {
		t.Fatal("replay moved money again")
	}
	freelancerWallet, _ := f.store.WalletSnapshot(f.freelancer)
	if freelancerWallet.PendingBalance != 4000 {
		t.Fatalf("freelancer pending = %d, want 4000", freelancerWallet.PendingBalance)
	}
	status, err := f.svc.GetEscrowStatus(ctx, f.clientActor(""), c.ContractID)
	if err != nil {
		t.Fatalf("GetEscrowStatus: %v", err)
	}
	if status.Held != 6000 {
		t.Fatalf("held = %d, want 6000", status.Held)
	}
}

func TestMilestoneInvalidTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	m, err := f.svc.CreateMilestone(ctx, f.clientActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "design", Amount: 1000,
	})
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	// PENDING -> SUBMITTED skips IN_PROGRESS.
	_, err = f.svc.SubmitMilestone(ctx, f.freelancerActor(""), application.MilestoneTransitionInput{MilestoneID: m.MilestoneID})
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestMilestoneUpdateOnlyWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	m, err := f.svc.CreateMilestone(ctx, f.clientActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "design", Amount: 1000,
	})
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}

	updated, err := f.svc.UpdateMilestone(ctx, f.clientActor(""), application.UpdateMilestoneInput{
		MilestoneID: m.MilestoneID, Title: "design v2", Amount: 1500,
	})
	if err != nil {
		t.Fatalf("UpdateMilestone while pending: %v", err)
	}
	if updated.Title != "design v2" || updated.Amount != 1500 {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, err := f.svc.StartMilestone(ctx, f.freelancerActor(""), application.MilestoneTransitionInput{MilestoneID: m.MilestoneID}); err != nil {
		t.Fatalf("StartMilestone: %v", err)
	}
	_, err = f.svc.UpdateMilestone(ctx, f.clientActor(""), application.UpdateMilestoneInput{
		MilestoneID: m.MilestoneID, Title: "design v3", Amount: 2000,
	})
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected frozen terms, got %v", err)
	}
}

func TestMilestoneRoleGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	if _, err := f.svc.CreateMilestone(ctx, f.freelancerActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "design", Amount: 1000,
	}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("freelancer creating milestone: %v", err)
	}

	m, err := f.svc.CreateMilestone(ctx, f.clientActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "design", Amount: 1000,
	})
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	input := application.MilestoneTransitionInput{MilestoneID: m.MilestoneID}

	if _, err := f.svc.StartMilestone(ctx, f.clientActor(""), input); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("client starting milestone: %v", err)
	}
	if _, err := f.svc.StartMilestone(ctx, f.freelancerActor(""), input); err != nil {
		t.Fatalf("StartMilestone: %v", err)
	}
	if _, err := f.svc.SubmitMilestone(ctx, f.freelancerActor(""), input); err != nil {
		t.Fatalf("SubmitMilestone: %v", err)
	}
	if _, err := f.svc.ApproveMilestone(ctx, f.freelancerActor(""), input); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("freelancer approving own work: %v", err)
	}
	if _, err := f.svc.ApproveMilestone(ctx, adminActor(""), input); err != nil {
		t.Fatalf("admin approving milestone: %v", err)
	}
}

func TestAdminUncheckedTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	m, err := f.svc.CreateMilestone(ctx, f.clientActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "design", Amount: 1000,
	})
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	input := application.MilestoneTransitionInput{MilestoneID: m.MilestoneID, AllowUnchecked: true}

	// A party passing the flag still goes through the table.
	_, err = f.svc.CompleteMilestone(ctx, f.clientActor(""), input)
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("client bypassing table: %v", err)
	}

	got, err := f.svc.CompleteMilestone(ctx, adminActor(""), input)
	if err != nil {
		t.Fatalf("admin unchecked transition: %v", err)
	}
	if got.Status != domain.MilestoneCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}
}

func TestDeletionHandshake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	m, err := f.svc.CreateMilestone(ctx, f.clientActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "design", Amount: 1000,
	})
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}

	// Accept before any request is the handshake violation.
	if err := f.svc.AcceptRequestDeletion(ctx, f.freelancerActor(""), m.MilestoneID); !errors.Is(err, domain.ErrNoDeletionRequest) {
		t.Fatalf("accept without request: %v", err)
	}

	if _, err := f.svc.RequestDeletion(ctx, f.freelancerActor(""), m.MilestoneID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("freelancer requesting deletion: %v", err)
	}

	requested, err := f.svc.RequestDeletion(ctx, f.clientActor(""), m.MilestoneID)
	if err != nil {
		t.Fatalf("RequestDeletion: %v", err)
	}
	if requested.DeletionRequestedAt == nil {
		t.Fatal("deletion request not stamped")
	}

	if err := f.svc.AcceptRequestDeletion(ctx, f.clientActor(""), m.MilestoneID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("client accepting own request: %v", err)
	}
	if err := f.svc.AcceptRequestDeletion(ctx, f.freelancerActor(""), m.MilestoneID); err != nil {
		t.Fatalf("AcceptRequestDeletion: %v", err)
	}
	if _, err := f.svc.GetMilestone(ctx, f.clientActor(""), m.MilestoneID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("milestone still present after handshake: %v", err)
	}
}

func TestSequenceNotReusedAfterDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	first, err := f.svc.CreateMilestone(ctx, f.clientActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "one", Amount: 1000,
	})
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	if _, err := f.svc.CreateMilestone(ctx, f.clientActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "two", Amount: 2000,
	}); err != nil {
		t.Fatalf("CreateMilestone second: %v", err)
	}

	if _, err := f.svc.RequestDeletion(ctx, f.clientActor(""), first.MilestoneID); err != nil {
		t.Fatalf("RequestDeletion: %v", err)
	}
	if err := f.svc.AcceptRequestDeletion(ctx, f.freelancerActor(""), first.MilestoneID); err != nil {
		t.Fatalf("AcceptRequestDeletion: %v", err)
	}

	third, err := f.svc.CreateMilestone(ctx, f.clientActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "three", Amount: 3000,
	})
	if err != nil {
		t.Fatalf("CreateMilestone after deletion: %v", err)
	}
	if third.Sequence != 3 {
		t.Fatalf("sequence after deletion = %d, want 3", third.Sequence)
	}

	list, err := f.svc.ListMilestones(ctx, f.clientActor(""), c.ContractID)
	if err != nil {
		t.Fatalf("ListMilestones: %v", err)
	}
	seen := map[int]int{}
	for _, m := range list {
		seen[m.Sequence]++
	}
	if len(list) != 2 || seen[2] != 1 || seen[3] != 1 {
		t.Fatalf("unexpected sequences after deletion: %+v", seen)
	}
}

func TestMilestoneRequiresActionableContract(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	m, err := f.svc.CreateMilestone(ctx, f.clientActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "design", Amount: 1000,
	})
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	if _, err := f.svc.TerminateContract(ctx, f.clientActor(""), c.ContractID); err != nil {
		t.Fatalf("TerminateContract: %v", err)
	}

	if _, err := f.svc.CreateMilestone(ctx, f.clientActor(""), application.CreateMilestoneInput{
		ContractID: c.ContractID, Title: "late", Amount: 1000,
	}); !errors.Is(err, domain.ErrContractNotActionable) {
		t.Fatalf("create on terminated contract: %v", err)
	}
	if _, err := f.svc.StartMilestone(ctx, f.freelancerActor(""), application.MilestoneTransitionInput{MilestoneID: m.MilestoneID}); !errors.Is(err, domain.ErrContractNotActionable) {
		t.Fatalf("transition on terminated contract: %v", err)
	}
	// Reads still work.
	if _, err := f.svc.GetMilestone(ctx, f.clientActor(""), m.MilestoneID); err != nil {
		t.Fatalf("GetMilestone after termination: %v", err)
	}
}

func TestWalletTransfersAndPayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	if _, err := f.svc.Deposit(ctx, f.clientActor("dep-1"), application.DepositInput{ContractID: c.ContractID, Amount: 10000}); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if _, err := f.svc.Release(ctx, f.clientActor("rel-1"), application.ReleaseInput{ContractID: c.ContractID, Amount: 4000}); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// The client cannot move the freelancer's money.
	if _, err := f.svc.MovePendingToAvailable(ctx, f.clientActor("mv-x"), application.PendingTransferInput{UserID: f.freelancer, Amount: 4000}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("client clearing freelancer pending: %v", err)
	}

	balance, err := f.svc.MovePendingToAvailable(ctx, f.freelancerActor("mv-1"), application.PendingTransferInput{UserID: f.freelancer, Amount: 4000})
	if err != nil {
		t.Fatalf("MovePendingToAvailable: %v", err)
	}
	if balance.Available != 4000 || balance.Pending != 0 {
		t.Fatalf("unexpected balance after clear: %+v", balance)
	}

	if _, err := f.svc.MovePendingToAvailable(ctx, f.freelancerActor("mv-2"), application.PendingTransferInput{UserID: f.freelancer, Amount: 1}); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("clearing empty pending: %v", err)
	}

	balance, err = f.svc.ProcessPayoutDeduction(ctx, f.freelancerActor("po-1"), application.PayoutDeductionInput{
		UserID: f.freelancer, Amount: 2500, PayoutID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("ProcessPayoutDeduction: %v", err)
	}
	if balance.Available != 1500 {
		t.Fatalf("available after payout = %d, want 1500", balance.Available)
	}

	transactions, err := f.svc.ListWalletTransactions(ctx, f.freelancerActor(""), f.freelancer, 0)
	if err != nil {
		t.Fatalf("ListWalletTransactions: %v", err)
	}
	// release credit, pending clear, payout deduction
	if len(transactions) != 3 {
		t.Fatalf("expected 3 audit rows, got %d", len(transactions))
	}
}

func TestGetWalletAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.GetWallet(ctx, f.clientActor(""), f.freelancer); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("client reading freelancer wallet: %v", err)
	}
	balance, err := f.svc.GetWallet(ctx, adminActor(""), f.client)
	if err != nil {
		t.Fatalf("admin reading wallet: %v", err)
	}
	if balance.Available != 15000 {
		t.Fatalf("available = %d, want 15000", balance.Available)
	}
	if balance.Total() != 15000 {
		t.Fatalf("total = %d, want 15000", balance.Total())
	}
}

func TestEveryMoneyMovementEnqueuesAnEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	before := len(f.store.OutboxRecords())
	if _, err := f.svc.Deposit(ctx, f.clientActor("dep-1"), application.DepositInput{ContractID: c.ContractID, Amount: 5000}); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if _, err := f.svc.Release(ctx, f.clientActor("rel-1"), application.ReleaseInput{ContractID: c.ContractID, Amount: 2000}); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := f.svc.Refund(ctx, f.clientActor("ref-1"), application.RefundInput{ContractID: c.ContractID, Amount: 1000}); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	records := f.store.OutboxRecords()
	if len(records) != before+3 {
		t.Fatalf("expected 3 new outbox records, got %d", len(records)-before)
	}
	types := map[string]bool{}
	for _, rec := range records[before:] {
		types[rec.EventType] = true
		if rec.PartitionKey != c.ContractID.String() {
			t.Fatalf("partition key = %q, want contract id", rec.PartitionKey)
		}
	}
	for _, want := range []string{domain.EventEscrowDeposited, domain.EventEscrowReleased, domain.EventEscrowRefunded} {
		if !types[want] {
			t.Fatalf("missing event type %s", want)
		}
	}
}

func TestInactiveFreelancerBlocksRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := startedContract(t, f)

	if _, err := f.svc.Deposit(ctx, f.clientActor("dep-1"), application.DepositInput{ContractID: c.ContractID, Amount: 5000}); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	f.store.SeedUser(domain.WalletUser{UserID: f.freelancer, Role: domain.RoleFreelancer, IsActive: false})

	_, err := f.svc.Release(ctx, f.clientActor("rel-1"), application.ReleaseInput{ContractID: c.ContractID, Amount: 1000})
	if !errors.Is(err, domain.ErrWalletInactive) {
		t.Fatalf("expected wallet inactive, got %v", err)
	}
}
