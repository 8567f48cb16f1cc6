package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

type testEnv struct {
	store           *memory.Store
	router          http.Handler
	clientToken     string
	freelancerToken string
	client          uuid.UUID
	freelancer      uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
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

	verifier, err := security.NewEphemeralJWTVerifier()
	if err != nil {
		t.Fatalf("ephemeral verifier: %v", err)
	}
	clientToken, err := verifier.SignDevToken(client, "CLIENT", time.Hour)
	if err != nil {
		t.Fatalf("sign client token: %v", err)
	}
	freelancerToken, err := verifier.SignDevToken(freelancer, "FREELANCER", time.Hour)
	if err != nil {
		t.Fatalf("sign freelancer token: %v", err)
	}

	return &testEnv{
		store:           store,
		router:          NewRouter(NewHandler(svc, verifier)),
		clientToken:     clientToken,
		freelancerToken: freelancerToken,
		client:          client,
		freelancer:      freelancer,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token, idempotencyKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, payload)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Status != "success" {
		t.Fatalf("status = %q, body %s", envelope.Status, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) contracts.ErrorPayload {
	t.Helper()
	var envelope contracts.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error
}

func TestRouterRequiresAuth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/escrow/v1/contracts", "", "", contracts.CreateContractRequest{
		FreelancerID: e.freelancer.String(), JobID: uuid.NewString(), Amount: 100,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestContractAndEscrowFlowOverHTTP(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/escrow/v1/contracts", e.clientToken, "", contracts.CreateContractRequest{
		FreelancerID: e.freelancer.String(), JobID: uuid.NewString(), Amount: 100, Currency: "USD",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create contract: %d %s", rec.Code, rec.Body.String())
	}
	var contract contracts.ContractResponse
	decodeData(t, rec, &contract)
	if contract.Status != "PENDING" || contract.Amount != 100 {
		t.Fatalf("unexpected contract: %+v", contract)
	}

	rec = e.do(t, http.MethodPost, "/escrow/v1/contracts/"+contract.ContractID+"/start", e.freelancerToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start contract: %d %s", rec.Code, rec.Body.String())
	}
	decodeData(t, rec, &contract)
	if contract.Status != "ACTIVE" || contract.StartDate == nil {
		t.Fatalf("unexpected started contract: %+v", contract)
	}

	rec = e.do(t, http.MethodPost, "/escrow/v1/contracts/"+contract.ContractID+"/escrow/deposit", e.clientToken, "dep-1", contracts.DepositRequest{Amount: 50})
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit: %d %s", rec.Code, rec.Body.String())
	}
	var escrow contracts.EscrowStatusResponse
	decodeData(t, rec, &escrow)
	if escrow.HeldAmount != 50 {
		t.Fatalf("held = %v, want 50", escrow.HeldAmount)
	}

	// Replay with the same key returns the same state without moving money.
	rec = e.do(t, http.MethodPost, "/escrow/v1/contracts/"+contract.ContractID+"/escrow/deposit", e.clientToken, "dep-1", contracts.DepositRequest{Amount: 50})
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit replay: %d %s", rec.Code, rec.Body.String())
	}
	decodeData(t, rec, &escrow)
	if escrow.HeldAmount != 50 {
		t.Fatalf("held after replay = %v, want 50", escrow.HeldAmount)
	}

	rec = e.do(t, http.MethodGet, "/escrow/v1/wallets/"+e.client.String(), e.clientToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get wallet: %d %s", rec.Code, rec.Body.String())
	}
	var wallet contracts.WalletResponse
	decodeData(t, rec, &wallet)
	if wallet.AvailableBalance != 100 {
		t.Fatalf("client available = %v, want 100", wallet.AvailableBalance)
	}
}

func TestInvalidTransitionOverHTTP(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/escrow/v1/contracts", e.clientToken, "", contracts.CreateContractRequest{
		FreelancerID: e.freelancer.String(), JobID: uuid.NewString(), Amount: 100,
	})
	var contract contracts.ContractResponse
	decodeData(t, rec, &contract)

	// PENDING -> REVIEW_PENDING skips ACTIVE.
	rec = e.do(t, http.MethodPost, "/escrow/v1/contracts/"+contract.ContractID+"/submit", e.freelancerToken, "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	payload := decodeError(t, rec)
	if payload.Code != "INVALID_STATE_TRANSITION" {
		t.Fatalf("code = %q", payload.Code)
	}
}

func TestUnknownBodyFieldRejected(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/escrow/v1/contracts", e.clientToken, "", map[string]any{
		"freelancer_id": e.freelancer.String(),
		"job_id":        uuid.NewString(),
		"amount":        100,
		"surprise":      true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMapDomainError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NewTransitionError("contract", "ACTIVE", "COMPLETED"), http.StatusConflict, "INVALID_STATE_TRANSITION"},
		{domain.ErrUnauthorized, http.StatusForbidden, "FORBIDDEN"},
		{domain.ErrInsufficientFunds, http.StatusConflict, "INSUFFICIENT_FUNDS"},
		{domain.ErrNoDeletionRequest, http.StatusConflict, "NO_DELETION_REQUEST"},
		{domain.ErrContractNotActionable, http.StatusConflict, "CONTRACT_NOT_ACTIONABLE"},
		{domain.ErrWalletInactive, http.StatusUnprocessableEntity, "WALLET_INACTIVE"},
		{domain.ErrIdempotencyRequired, http.StatusBadRequest, "IDEMPOTENCY_KEY_REQUIRED"},
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		status, code, _ := mapDomainError(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("mapDomainError(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}
