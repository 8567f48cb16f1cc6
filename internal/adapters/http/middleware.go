package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyActor     ctxKey = "actor"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpLogger().ErrorContext(r.Context(), "panic recovered",
					"operation", "http_panic_recovery",
					"outcome", "failure",
					"request_id", requestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)
				writeError(w, requestIDFromContext(r.Context()), http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.bytes += n
	return n, err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		statusCode := recorder.statusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		outcome := "success"
		if statusCode >= 400 {
			outcome = "failure"
		}

		fields := []any{
			"operation", "http_request",
			"outcome", outcome,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", statusCode,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFromContext(r.Context()),
		}
		switch {
		case statusCode >= 500:
			httpLogger().ErrorContext(r.Context(), "http request completed", fields...)
		case statusCode >= 400:
			httpLogger().WarnContext(r.Context(), "http request completed", fields...)
		default:
			httpLogger().InfoContext(r.Context(), "http request completed", fields...)
		}
	})
}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(ctxKeyRequestID)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func bearerTokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// authMiddleware verifies the bearer token and builds the Actor handed to
// every service call. The idempotency key rides along from the header so
// money operations can reserve it.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := requestIDFromContext(r.Context())
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, reqID, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}

		claims, err := h.verifier.ParseAndValidate(raw)
		if err != nil {
			writeError(w, reqID, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}
		role, err := domain.ParseRole(claims.Role)
		if err != nil {
			writeError(w, reqID, http.StatusUnauthorized, "UNAUTHORIZED", "unknown role claim")
			return
		}

		actor := application.Actor{
			SubjectID:      claims.UserID,
			Role:           role,
			RequestID:      reqID,
			IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		}
		ctx := context.WithValue(r.Context(), ctxKeyActor, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) (application.Actor, bool) {
	v := ctx.Value(ctxKeyActor)
	actor, ok := v.(application.Actor)
	return actor, ok
}

// mapDomainError translates core error kinds into HTTP semantics. The core
// itself never sees status codes.
func mapDomainError(err error) (int, string, string) {
	var transition *domain.StateTransitionError
	switch {
	case errors.As(err, &transition):
		return http.StatusConflict, "INVALID_STATE_TRANSITION", transition.Error()
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return http.StatusConflict, "INVALID_STATE_TRANSITION", err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "FORBIDDEN", "caller is not a party to this operation"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusConflict, "INSUFFICIENT_FUNDS", "insufficient funds"
	case errors.Is(err, domain.ErrNoDeletionRequest):
		return http.StatusConflict, "NO_DELETION_REQUEST", err.Error()
	case errors.Is(err, domain.ErrContractNotActionable):
		return http.StatusConflict, "CONTRACT_NOT_ACTIONABLE", err.Error()
	case errors.Is(err, domain.ErrWalletInactive):
		return http.StatusUnprocessableEntity, "WALLET_INACTIVE", err.Error()
	case errors.Is(err, domain.ErrEscrowClosed):
		return http.StatusConflict, "ESCROW_CLOSED", err.Error()
	case errors.Is(err, domain.ErrIdempotencyRequired):
		return http.StatusBadRequest, "IDEMPOTENCY_KEY_REQUIRED", err.Error()
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return http.StatusConflict, "IDEMPOTENCY_CONFLICT", err.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}
