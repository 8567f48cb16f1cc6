package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

func (h *Handler) createMilestone(w http.ResponseWriter, r *http.Request) {
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
	var req contracts.CreateMilestoneRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	m, err := h.service.CreateMilestone(r.Context(), actor, application.CreateMilestoneInput{
		ContractID:  contractID,
		Title:       req.Title,
		Description: req.Description,
		Amount:      domain.AmountFromMajor(req.Amount),
		Currency:    req.Currency,
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.writeOperationError(w, r, "create_milestone", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toMilestoneResponse(m))
}

func (h *Handler) listMilestones(w http.ResponseWriter, r *http.Request) {
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
	milestones, err := h.service.ListMilestones(r.Context(), actor, contractID)
	if err != nil {
		h.writeOperationError(w, r, "list_milestones", err)
		return
	}
	out := make([]contracts.MilestoneResponse, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, toMilestoneResponse(m))
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) getMilestone(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	milestoneID, err := uuidParam(r, "milestone_id")
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid milestone_id")
		return
	}
	m, err := h.service.GetMilestone(r.Context(), actor, milestoneID)
	if err != nil {
		h.writeOperationError(w, r, "get_milestone", err)
		return
	}
	writeSuccess(w, http.StatusOK, toMilestoneResponse(m))
}

func (h *Handler) updateMilestone(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	milestoneID, err := uuidParam(r, "milestone_id")
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid milestone_id")
		return
	}
	var req contracts.UpdateMilestoneRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	m, err := h.service.UpdateMilestone(r.Context(), actor, application.UpdateMilestoneInput{
		MilestoneID: milestoneID,
		Title:       req.Title,
		Description: req.Description,
		Amount:      domain.AmountFromMajor(req.Amount),
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.writeOperationError(w, r, "update_milestone", err)
		return
	}
	writeSuccess(w, http.StatusOK, toMilestoneResponse(m))
}

func (h *Handler) startMilestone(w http.ResponseWriter, r *http.Request) {
	h.milestoneTransition(w, r, "start_milestone", h.service.StartMilestone)
}

func (h *Handler) submitMilestone(w http.ResponseWriter, r *http.Request) {
	h.milestoneTransition(w, r, "submit_milestone", h.service.SubmitMilestone)
}

func (h *Handler) approveMilestone(w http.ResponseWriter, r *http.Request) {
	h.milestoneTransition(w, r, "approve_milestone", h.service.ApproveMilestone)
}

func (h *Handler) rejectMilestone(w http.ResponseWriter, r *http.Request) {
	h.milestoneTransition(w, r, "reject_milestone", h.service.RejectMilestone)
}

func (h *Handler) disputeMilestone(w http.ResponseWriter, r *http.Request) {
	h.milestoneTransition(w, r, "dispute_milestone", h.service.DisputeMilestone)
}

func (h *Handler) cancelMilestone(w http.ResponseWriter, r *http.Request) {
	h.milestoneTransition(w, r, "cancel_milestone", h.service.CancelMilestone)
}

func (h *Handler) payMilestone(w http.ResponseWriter, r *http.Request) {
	h.milestoneTransition(w, r, "pay_milestone", h.service.PayMilestone)
}

func (h *Handler) completeMilestone(w http.ResponseWriter, r *http.Request) {
	h.milestoneTransition(w, r, "complete_milestone", h.service.CompleteMilestone)
}

// milestoneTransition funnels every status-change endpoint. The body is
// optional; when present it may carry the admin-only allow_unchecked flag.
func (h *Handler) milestoneTransition(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	fn func(ctx context.Context, actor application.Actor, input application.MilestoneTransitionInput) (domain.Milestone, error),
) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	milestoneID, err := uuidParam(r, "milestone_id")
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid milestone_id")
		return
	}

	var req contracts.MilestoneTransitionRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	m, err := fn(r.Context(), actor, application.MilestoneTransitionInput{
		MilestoneID:    milestoneID,
		AllowUnchecked: req.AllowUnchecked,
	})
	if err != nil {
		h.writeOperationError(w, r, operation, err)
		return
	}
	writeSuccess(w, http.StatusOK, toMilestoneResponse(m))
}

func (h *Handler) requestMilestoneDeletion(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	milestoneID, err := uuidParam(r, "milestone_id")
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid milestone_id")
		return
	}
	m, err := h.service.RequestDeletion(r.Context(), actor, milestoneID)
	if err != nil {
		h.writeOperationError(w, r, "request_milestone_deletion", err)
		return
	}
	writeSuccess(w, http.StatusOK, toMilestoneResponse(m))
}

func (h *Handler) acceptMilestoneDeletion(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	milestoneID, err := uuidParam(r, "milestone_id")
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid milestone_id")
		return
	}
	if err := h.service.AcceptRequestDeletion(r.Context(), actor, milestoneID); err != nil {
		h.writeOperationError(w, r, "accept_milestone_deletion", err)
		return
	}
	writeMessage(w, http.StatusOK, "milestone deleted")
}
