package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/ports"
)

// RedisBalanceCache is the short-TTL read projection of wallet and escrow
// balances. Writers invalidate after every mutation, so a stale entry lives
// at most one TTL.
type RedisBalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisBalanceCache(client *redis.Client, ttl time.Duration) *RedisBalanceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisBalanceCache{client: client, ttl: ttl}
}

func walletKey(userID uuid.UUID) string     { return "escrow:wallet:" + userID.String() }
func escrowKey(contractID uuid.UUID) string { return "escrow:account:" + contractID.String() }

func (c *RedisBalanceCache) GetWallet(ctx context.Context, userID uuid.UUID) (*ports.WalletBalanceView, error) {
	data, err := c.client.HGetAll(ctx, walletKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	view := ports.WalletBalanceView{}
	if raw, ok := data["available"]; ok {
		if n, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
			view.Available = domain.Amount(n)
		}
	}
	if raw, ok := data["pending"]; ok {
		if n, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
			view.Pending = domain.Amount(n)
		}
	}
	return &view, nil
}

func (c *RedisBalanceCache) SetWallet(ctx context.Context, userID uuid.UUID, view ports.WalletBalanceView) error {
	key := walletKey(userID)
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"available", int64(view.Available),
			"pending", int64(view.Pending),
		)
		p.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

func (c *RedisBalanceCache) InvalidateWallet(ctx context.Context, userID uuid.UUID) error {
	return c.client.Del(ctx, walletKey(userID)).Err()
}

func (c *RedisBalanceCache) GetEscrow(ctx context.Context, contractID uuid.UUID) (*ports.EscrowBalanceView, error) {
	data, err := c.client.HGetAll(ctx, escrowKey(contractID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	view := ports.EscrowBalanceView{}
	if raw, ok := data["held"]; ok {
		if n, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
			view.Held = domain.Amount(n)
		}
	}
	if raw, ok := data["initial"]; ok {
		if n, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
			view.Initial = domain.Amount(n)
		}
	}
	return &view, nil
}

func (c *RedisBalanceCache) SetEscrow(ctx context.Context, contractID uuid.UUID, view ports.EscrowBalanceView) error {
	key := escrowKey(contractID)
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"held", int64(view.Held),
			"initial", int64(view.Initial),
		)
		p.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

func (c *RedisBalanceCache) InvalidateEscrow(ctx context.Context, contractID uuid.UUID) error {
	return c.client.Del(ctx, escrowKey(contractID)).Err()
}
