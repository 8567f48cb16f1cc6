package http

import (
	"encoding/json"
	"net/http"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/contracts"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, contracts.SuccessResponse{
		Status: "success",
		Data:   data,
	})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, contracts.SuccessResponse{
		Status:  "success",
		Message: message,
	})
}

func writeError(w http.ResponseWriter, requestID string, statusCode int, code, message string) {
	writeJSON(w, statusCode, contracts.ErrorResponse{
		Status: "error",
		Error: contracts.ErrorPayload{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}
