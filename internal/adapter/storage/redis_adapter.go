package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

const (
	idempotencyKeyPrefix = "idem:request:"
	idempotencyKeyTTL    = 24 * time.Hour
	latestReportKey      = "report:latest"
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisAdapter) CacheReport(ctx context.Context, report domain.BusinessReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return r.client.Set(ctx, latestReportKey, payload, 0).Err()
}

func (r *RedisAdapter) LatestReport(ctx context.Context) (*domain.BusinessReport, error) {
	payload, err := r.client.Get(ctx, latestReportKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var report domain.BusinessReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}
