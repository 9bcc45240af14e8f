package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/septivank/sensor-telemetry-api/internal/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// CurrentReadingsKey holds the JSON snapshot of the latest reading per sensor.
const CurrentReadingsKey = "sensors:current"

const maxUpdateAttempts = 5

// NewClient creates a Redis client from url and ties its lifetime to lc
func NewClient(lc fx.Lifecycle, logger *zap.Logger, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("[REDIS] failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Error("redis ping failed", zap.Error(err), zap.String("addr", opts.Addr))
				return fmt.Errorf("[REDIS CONNECTION FAILED] cannot reach redis, check REDIS_URL: %w", err)
			}
			logger.Info("redis connection established", zap.String("addr", opts.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := client.Close(); err != nil {
				logger.Error("failed to close redis client", zap.Error(err))
				return err
			}
			logger.Info("redis connection closed")
			return nil
		},
	})

	return client, nil
}

// ReadingsCache stores the current readings snapshot in Redis
type ReadingsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReadingsCache creates a cache whose snapshots expire after ttl
func NewReadingsCache(client *redis.Client, ttl time.Duration) *ReadingsCache {
	return &ReadingsCache{client: client, ttl: ttl}
}

// Get returns the cached snapshot, ok=false on a miss
func (c *ReadingsCache) Get(ctx context.Context) ([]db.SensorReading, bool, error) {
	raw, err := c.client.Get(ctx, CurrentReadingsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", CurrentReadingsKey, err)
	}

	snapshot, err := decode(raw)
	if err != nil {
		return nil, false, err
	}
	return snapshot, true, nil
}

// Set replaces the snapshot and restarts its ttl
func (c *ReadingsCache) Set(ctx context.Context, snapshot []db.SensorReading) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, CurrentReadingsKey, body, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", CurrentReadingsKey, err)
	}
	return nil
}

// Update rewrites the snapshot with fn under WATCH, keeping the remaining ttl.
// Nothing happens when no snapshot is cached. If the key keeps changing underneath,
// the snapshot is dropped so the next read reloads it from the database.
func (c *ReadingsCache) Update(ctx context.Context, fn func([]db.SensorReading) []db.SensorReading) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, CurrentReadingsKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		snapshot, err := decode(raw)
		if err != nil {
			return err
		}

		body, err := json.Marshal(fn(snapshot))
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, CurrentReadingsKey, body, redis.KeepTTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := c.client.Watch(ctx, txf, CurrentReadingsKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", CurrentReadingsKey, err)
		}
		return nil
	}

	if err := c.client.Del(ctx, CurrentReadingsKey).Err(); err != nil {
		return fmt.Errorf("failed to drop contended %s: %w", CurrentReadingsKey, err)
	}
	return nil
}

func decode(raw []byte) ([]db.SensorReading, error) {
	var snapshot []db.SensorReading
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", CurrentReadingsKey, err)
	}
	if snapshot == nil {
		snapshot = []db.SensorReading{}
	}
	return snapshot, nil
}
