package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"slotline/pkg/config"
	"slotline/pkg/metrics"
	"slotline/pkg/model"
)

const redisKeyPrefix = "idem:"

// redisStore backs the idempotency guard with Redis. SET NX makes the
// claim atomic and the key TTL implements the retention window, so no
// sweeper is needed.
type redisStore struct {
	cfg       *config.Config
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(cfg *config.Config) Store {
	return &redisStore{
		cfg:       cfg,
		client:    cfg.Client.Redis,
		retention: cfg.IdempotencyRetention,
	}
}

func redisKey(tenantID, key string) string {
	return redisKeyPrefix + tenantID + ":" + key
}

func (s *redisStore) CheckOrReserve(ctx context.Context, tenantID, key, requestHash string) (CheckResult, error) {
	now := time.Now().UTC()
	record := model.IdempotencyRecord{
		TenantID:    tenantID,
		Key:         key,
		RequestHash: requestHash,
		ExpiresAt:   now.Add(s.retention),
		CreatedAt:   now,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return CheckResult{}, fmt.Errorf("failed to encode idempotency record: %w", err)
	}

	k := redisKey(tenantID, key)
	claimed, err := s.client.SetNX(ctx, k, data, s.retention).Result()
	if err != nil {
		return CheckResult{}, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if claimed {
		return CheckResult{Outcome: OutcomeNew}, nil
	}

	raw, err := s.client.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Holder expired between SETNX and GET.
			return CheckResult{Outcome: OutcomeInProgress}, nil
		}
		return CheckResult{}, fmt.Errorf("failed to load idempotency record: %w", err)
	}

	var existing model.IdempotencyRecord
	if err := json.Unmarshal(raw, &existing); err != nil {
		return CheckResult{}, fmt.Errorf("failed to decode idempotency record: %w", err)
	}

	if existing.RequestHash != requestHash {
		return CheckResult{Outcome: OutcomeConflict}, nil
	}
	if !existing.Completed {
		return CheckResult{Outcome: OutcomeInProgress}, nil
	}

	metrics.IncIdempotencyReplay()
	return CheckResult{Outcome: OutcomeReplay, Result: existing.Result}, nil
}

func (s *redisStore) Complete(ctx context.Context, tenantID, key string, result []byte) error {
	k := redisKey(tenantID, key)

	raw, err := s.client.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrRecordNotFound
		}
		return fmt.Errorf("failed to load idempotency record: %w", err)
	}

	var record model.IdempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return fmt.Errorf("failed to decode idempotency record: %w", err)
	}

	record.Result = result
	record.Completed = true

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency record: %w", err)
	}

	// KEEPTTL preserves the original retention window.
	if err := s.client.Set(ctx, k, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to complete idempotency record: %w", err)
	}
	return nil
}

func (s *redisStore) Forget(ctx context.Context, tenantID, key string) error {
	if err := s.client.Del(ctx, redisKey(tenantID, key)).Err(); err != nil {
		return fmt.Errorf("failed to forget idempotency key: %w", err)
	}
	return nil
}

func (s *redisStore) Stop() {}
