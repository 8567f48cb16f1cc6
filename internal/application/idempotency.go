package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

// replayIdempotent returns the cached response for a completed request
// with the same key, or an idempotency conflict when the key was reused
// for a different request body.
func (s *Service) replayIdempotent(ctx context.Context, key, requestHash string, out any) (bool, error) {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return false, nil
	}
	rec, err := s.idempotency.Get(ctx, key, s.nowFn())
	if err != nil || rec == nil {
		return false, err
	}
	if rec.RequestHash != requestHash {
		return false, domain.ErrIdempotencyConflict
	}
	if len(rec.ResponseBody) == 0 {
		// Reserved but never completed; the reserve below decides whether
		// the reservation is still active.
		return false, nil
	}
	if err := json.Unmarshal(rec.ResponseBody, out); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *Service) reserveIdempotency(ctx context.Context, key, requestHash string) error {
	if s.idempotency == nil {
		return nil
	}
	if strings.TrimSpace(key) == "" {
		return domain.ErrIdempotencyRequired
	}
	now := s.nowFn()
	err := s.idempotency.Reserve(ctx, key, requestHash, now, now.Add(s.cfg.IdempotencyTTL))
	if errors.Is(err, domain.ErrConflict) {
		return domain.ErrIdempotencyConflict
	}
	return err
}

func (s *Service) completeIdempotency(ctx context.Context, key string, payload any) {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return
	}
	body, _ := json.Marshal(payload)
	_ = s.idempotency.Complete(ctx, key, 200, body, s.nowFn())
}

func hashJSON(v any) string {
	b, _ := json.Marshal(v)
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
