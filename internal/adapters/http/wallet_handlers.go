package http

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	userID, err := uuidParam(r, "user_id")
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user_id")
		return
	}
	balance, err := h.service.GetWallet(r.Context(), actor, userID)
	if err != nil {
		h.writeOperationError(w, r, "get_wallet", err)
		return
	}
	writeSuccess(w, http.StatusOK, toWalletResponse(balance))
}

func (h *Handler) listWalletTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	userID, err := uuidParam(r, "user_id")
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user_id")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			limit = n
		}
	}
	transactions, err := h.service.ListWalletTransactions(r.Context(), actor, userID, limit)
	if err != nil {
		h.writeOperationError(w, r, "list_wallet_transactions", err)
		return
	}

	type transactionResponse struct {
		TransactionID string  `json:"transaction_id"`
		Amount        float64 `json:"amount"`
		Type          string  `json:"type"`
		RelatedID     string  `json:"related_id,omitempty"`
		Metadata      string  `json:"metadata,omitempty"`
		CreatedAt     string  `json:"created_at"`
	}
	out := make([]transactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		item := transactionResponse{
			TransactionID: tx.TransactionID.String(),
			Amount:        tx.Amount.Major(),
			Type:          tx.Type,
			Metadata:      tx.Metadata,
			CreatedAt:     tx.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if tx.RelatedID != nil {
			item.RelatedID = tx.RelatedID.String()
		}
		out = append(out, item)
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) movePendingToAvailable(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	userID, err := uuidParam(r, "user_id")
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user_id")
		return
	}
	var req contracts.PendingTransferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	balance, err := h.service.MovePendingToAvailable(r.Context(), actor, application.PendingTransferInput{
		UserID: userID,
		Amount: domain.AmountFromMajor(req.Amount),
	})
	if err != nil {
		h.writeOperationError(w, r, "move_pending_to_available", err)
		return
	}
	writeSuccess(w, http.StatusOK, toWalletResponse(balance))
}

func (h *Handler) processPayoutDeduction(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromContext(r.Context()), http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
		return
	}
	userID, err := uuidParam(r, "user_id")
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user_id")
		return
	}
	var req contracts.PayoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	payoutID, err := uuid.Parse(req.PayoutID)
	if err != nil {
		writeError(w, actor.RequestID, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payout_id")
		return
	}

	balance, err := h.service.ProcessPayoutDeduction(r.Context(), actor, application.PayoutDeductionInput{
		UserID:   userID,
		Amount:   domain.AmountFromMajor(req.Amount),
		PayoutID: payoutID,
	})
	if err != nil {
		h.writeOperationError(w, r, "process_payout_deduction", err)
		return
	}
	writeSuccess(w, http.StatusOK, toWalletResponse(balance))
}
