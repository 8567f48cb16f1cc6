package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

// writeOperationError maps a domain error and logs it in one step.
func (h *Handler) writeOperationError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, code, msg := mapDomainError(err)
	logHTTPOperationError(r.Context(), operation, status, code, msg, err)
	writeError(w, requestIDFromContext(r.Context()), status, code, msg)
}

func (h *Handler) createContract(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	var req contracts.CreateContractRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	freelancerID, err := uuid.Parse(req.FreelancerID)
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid freelancer_id")
		return
	}
	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid job_id")
		return
	}

	c, err := h.service.CreateContract(r.Context(), actor, application.CreateContractInput{
		FreelancerID: freelancerID,
		JobID:        jobID,
		Amount:       domain.AmountFromMajor(req.Amount),
		Currency:     req.Currency,
	})
	if err != nil {
		h.writeOperationError(w, r, "create_contract", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toContractResponse(c))
}

func (h *Handler) getContract(w http.ResponseWriter, r *http.Request) {
	h.contractRead(w, r, "get_contract", h.service.GetContract)
}

func (h *Handler) startContract(w http.ResponseWriter, r *http.Request) {
	h.contractRead(w, r, "start_contract", h.service.StartContract)
}

func (h *Handler) submitWork(w http.ResponseWriter, r *http.Request) {
	h.contractRead(w, r, "submit_work", h.service.SubmitWork)
}

func (h *Handler) completeContract(w http.ResponseWriter, r *http.Request) {
	h.contractRead(w, r, "complete_contract", h.service.CompleteContract)
}

func (h *Handler) disputeContract(w http.ResponseWriter, r *http.Request) {
	h.contractRead(w, r, "dispute_contract", h.service.DisputeContract)
}

func (h *Handler) terminateContract(w http.ResponseWriter, r *http.Request) {
	h.contractRead(w, r, "terminate_contract", h.service.TerminateContract)
}

// contractRead funnels the single-id contract operations: read the id, call
// the use-case, render the contract.
func (h *Handler) contractRead(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	fn func(ctx context.Context, actor application.Actor, contractID uuid.UUID) (domain.Contract, error),
) {
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
	c, err := fn(r.Context(), actor, contractID)
	if err != nil {
		h.writeOperationError(w, r, operation, err)
		return
	}
	writeSuccess(w, http.StatusOK, toContractResponse(c))
}
