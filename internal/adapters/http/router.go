package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/application"
)

// Handler is the HTTP adapter entrypoint for the contract/escrow use-cases.
type Handler struct {
	service  *application.Service
	verifier *security.JWTVerifier
}

func NewHandler(service *application.Service, verifier *security.JWTVerifier) *Handler {
	return &Handler{service: service, verifier: verifier}
}

// NewRouter registers the HTTP routes and middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/escrow/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)

			r.Post("/contracts", handler.createContract)
			r.Get("/contracts/{contract_id}", handler.getContract)
			r.Post("/contracts/{contract_id}/start", handler.startContract)
			r.Post("/contracts/{contract_id}/submit", handler.submitWork)
			r.Post("/contracts/{contract_id}/complete", handler.completeContract)
			r.Post("/contracts/{contract_id}/dispute", handler.disputeContract)
			r.Post("/contracts/{contract_id}/terminate", handler.terminateContract)

			r.Post("/contracts/{contract_id}/milestones", handler.createMilestone)
			r.Get("/contracts/{contract_id}/milestones", handler.listMilestones)
			r.Get("/milestones/{milestone_id}", handler.getMilestone)
			r.Patch("/milestones/{milestone_id}", handler.updateMilestone)
			r.Post("/milestones/{milestone_id}/start", handler.startMilestone)
			r.Post("/milestones/{milestone_id}/submit", handler.submitMilestone)
			r.Post("/milestones/{milestone_id}/approve", handler.approveMilestone)
			r.Post("/milestones/{milestone_id}/reject", handler.rejectMilestone)
			r.Post("/milestones/{milestone_id}/dispute", handler.disputeMilestone)
			r.Post("/milestones/{milestone_id}/cancel", handler.cancelMilestone)
			r.Post("/milestones/{milestone_id}/pay", handler.payMilestone)
			r.Post("/milestones/{milestone_id}/complete", handler.completeMilestone)
			r.Post("/milestones/{milestone_id}/deletion-request", handler.requestMilestoneDeletion)
			r.Post("/milestones/{milestone_id}/deletion-accept", handler.acceptMilestoneDeletion)

			r.Get("/contracts/{contract_id}/escrow", handler.getEscrowStatus)
			r.Post("/contracts/{contract_id}/escrow/deposit", handler.deposit)
			r.Post("/contracts/{contract_id}/escrow/release", handler.release)
			r.Post("/contracts/{contract_id}/escrow/refund", handler.refund)

			r.Get("/wallets/{user_id}", handler.getWallet)
			r.Get("/wallets/{user_id}/transactions", handler.listWalletTransactions)
			r.Post("/wallets/{user_id}/transfer", handler.movePendingToAvailable)
			r.Post("/wallets/{user_id}/payout-deduction", handler.processPayoutDeduction)
		})
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}
