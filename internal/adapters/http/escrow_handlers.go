package http

import (
	"net/http"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

func (h *Handler) getEscrowStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	contractID, err := uuidParam(r, "contract_id")
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid contract_id")
		return
	}
	status, err := h.service.GetEscrowStatus(r.Context(), actor, contractID)
	if err != nil {
		h.writeOperationError(w, r, "get_escrow_status", err)
		return
	}
	if !status.Present {
		// The account opens when the contract starts; until then there is
		// nothing to report.
		writeSuccess(w, http.StatusOK, nil)
		return
	}
	writeSuccess(w, http.StatusOK, toEscrowStatusResponse(status))
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	contractID, err := uuidParam(r, "contract_id")
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid contract_id")
		return
	}
	var req contracts.DepositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	status, err := h.service.Deposit(r.Context(), actor, application.DepositInput{
		ContractID: contractID,
		Amount:     domain.AmountFromMajor(req.Amount),
	})
	if err != nil {
		h.writeOperationError(w, r, "escrow_deposit", err)
		return
	}
	writeSuccess(w, http.StatusOK, toEscrowStatusResponse(status))
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	contractID, err := uuidParam(r, "contract_id")
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid contract_id")
		return
	}
	var req contracts.ReleaseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	status, err := h.service.Release(r.Context(), actor, application.ReleaseInput{
		ContractID:  contractID,
		Amount:      domain.AmountFromMajor(req.Amount),
		Description: req.Description,
	})
	if err != nil {
		h.writeOperationError(w, r, "escrow_release", err)
		return
	}
	writeSuccess(w, http.StatusOK, toEscrowStatusResponse(status))
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	contractID, err := uuidParam(r, "contract_id")
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid contract_id")
		return
	}
	var req contracts.RefundRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	status, err := h.service.Refund(r.Context(), actor, application.RefundInput{
		ContractID:  contractID,
		Amount:      domain.AmountFromMajor(req.Amount),
		Description: req.Description,
	})
	if err != nil {
		h.writeOperationError(w, r, "escrow_refund", err)
		return
	}
	writeSuccess(w, http.StatusOK, toEscrowStatusResponse(status))
}
