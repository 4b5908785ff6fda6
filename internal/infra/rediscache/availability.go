// Package rediscache fronts the availability read path with Redis.
// Invalidation is generation-based: each provider has a counter that
// booking-affecting writes bump, which orphans every cached entry for
// that provider at once. Orphans age out via TTL.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"barberbook/internal/domain/availability"
	"barberbook/internal/pkg/config"
	"barberbook/internal/usecase/queries"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type AvailabilityCache struct {
	rdb   *redis.Client
	inner queries.AvailabilityReadStore
	ttl   time.Duration
}

// NewAvailabilityCache decorates inner with a Redis layer. A nil
// client degrades to a passthrough, so the engine runs without Redis.
func NewAvailabilityCache(rdb *redis.Client, inner queries.AvailabilityReadStore, cfg config.Config) *AvailabilityCache {
	return &AvailabilityCache{rdb: rdb, inner: inner, ttl: cfg.Redis.AvailabilityTTL}
}

func genKey(providerID uuid.UUID) string {
	return "avail:gen:" + providerID.String()
}

func (c *AvailabilityCache) generation(ctx context.Context, providerID uuid.UUID) int64 {
	val, err := c.rdb.Get(ctx, genKey(providerID)).Result()
	if err != nil {
		return 0
	}
	gen, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return gen
}

func (c *AvailabilityCache) ScheduleByProvider(ctx context.Context, providerID uuid.UUID) (availability.Schedule, error) {
	if c.rdb == nil {
		return c.inner.ScheduleByProvider(ctx, providerID)
	}

	key := fmt.Sprintf("avail:%s:%d:schedule", providerID, c.generation(ctx, providerID))
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var schedule availability.Schedule
		if err := json.Unmarshal(raw, &schedule); err == nil {
			return schedule, nil
		}
	}

	schedule, err := c.inner.ScheduleByProvider(ctx, providerID)
	if err != nil {
		return availability.Schedule{}, err
	}
	c.store(ctx, key, schedule)
	return schedule, nil
}

func (c *AvailabilityCache) BusyIntervals(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]availability.Interval, error) {
	if c.rdb == nil {
		return c.inner.BusyIntervals(ctx, providerID, from, to)
	}

	key := fmt.Sprintf("avail:%s:%d:busy:%d:%d",
		providerID, c.generation(ctx, providerID), from.Unix(), to.Unix())
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var busy []availability.Interval
		if err := json.Unmarshal(raw, &busy); err == nil {
			return busy, nil
		}
	}

	busy, err := c.inner.BusyIntervals(ctx, providerID, from, to)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, busy)
	return busy, nil
}

func (c *AvailabilityCache) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		slog.Warn("availability cache write failed", "key", key, "error", err)
	}
}

// Invalidate bumps the provider's generation so stale entries can
// never be served after a write. Cache failures are logged, not
// surfaced: the database answer stays authoritative either way.
func (c *AvailabilityCache) Invalidate(ctx context.Context, providerID uuid.UUID) {
	if c.rdb == nil {
		return
	}
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, genKey(providerID))
	pipe.Expire(ctx, genKey(providerID), 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("availability cache invalidation failed",
			"provider_id", providerID.String(), "error", err)
	}
}
