package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsdroid/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const keyPrefix = "newsdroid:signal:"

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// SignalCache keeps only the latest report per coin, expiring after ttl.
type SignalCache struct {
	tracer trace.Tracer
	redis  RedisClient
	ttl    time.Duration
}

func NewSignalCache(tracer trace.Tracer, client RedisClient, ttl time.Duration) *SignalCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SignalCache{tracer: tracer, redis: client, ttl: ttl}
}

func (c *SignalCache) Name() string { return "redis" }

// Publish overwrites the cached report for report.Coin.
func (c *SignalCache) Publish(ctx context.Context, report domain.Report) error {
	ctx, span := c.tracer.Start(ctx, "signal-cache.publish")
	defer span.End()
	span.SetAttributes(attribute.String("signal.coin", report.Coin))

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := c.redis.Set(ctx, Key(report.Coin), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache report for %s: %w", report.Coin, err)
	}
	return nil
}

// Latest returns the cached report for coin. ok is false on a miss.
func (c *SignalCache) Latest(ctx context.Context, coin string) (domain.Report, bool, error) {
	ctx, span := c.tracer.Start(ctx, "signal-cache.latest")
	defer span.End()

	raw, err := c.redis.Get(ctx, Key(coin)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Report{}, false, nil
	}
	if err != nil {
		return domain.Report{}, false, fmt.Errorf("read cached report for %s: %w", coin, err)
	}

	var report domain.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return domain.Report{}, false, fmt.Errorf("decode cached report for %s: %w", coin, err)
	}
	return report, true, nil
}

// Key is case-insensitive in the coin name.
func Key(coin string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(coin))
}
