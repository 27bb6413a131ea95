package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alem-hub/progress-engine/internal/application/query"
	"github.com/alem-hub/progress-engine/pkg/circuitbreaker"
)

// Ensure interface is met.
var _ query.SnapshotCache = (*SnapshotCache)(nil)

// DefaultSnapshotTTL bounds how stale a snapshot can get if an invalidation
// is lost.
const DefaultSnapshotTTL = 10 * time.Minute

// SnapshotCache stores progress snapshots as JSON with a TTL. Calls go
// through a circuit breaker; while it is open reads report a miss and
// writes are dropped.
type SnapshotCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewSnapshotCache creates a snapshot cache. A non-positive ttl uses
// DefaultSnapshotTTL.
func NewSnapshotCache(cache *Cache, ttl time.Duration, logger *slog.Logger) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "snapshot_cache")

	breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	})

	return &SnapshotCache{cache: cache, ttl: ttl, breaker: breaker, logger: logger}
}

func (c *SnapshotCache) key(userID string) string {
	return c.cache.Key(nsSnapshot, userID)
}

// Get returns the cached snapshot or (nil, nil) on a miss.
func (c *SnapshotCache) Get(ctx context.Context, userID string) (*query.ProgressSnapshotDTO, error) {
	var dto query.ProgressSnapshotDTO
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		err := c.cache.GetJSON(ctx, c.key(userID), &dto)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		return err
	})
	switch {
	case circuitbreaker.IsRejected(err):
		return nil, nil
	case err != nil:
		return nil, err
	case dto.UserID == "":
		return nil, nil
	}
	return &dto, nil
}

// Set stores the snapshot.
func (c *SnapshotCache) Set(ctx context.Context, snapshot *query.ProgressSnapshotDTO) error {
	if snapshot == nil || snapshot.UserID == "" {
		return ErrCacheKeyEmpty
	}
	return c.breaker.ExecuteWithFallback(ctx, func(ctx context.Context) error {
		return c.cache.SetJSON(ctx, c.key(snapshot.UserID), snapshot, c.ttl)
	}, func(err error) error {
		c.logger.Debug("snapshot write skipped", "user_id", snapshot.UserID, "reason", err)
		return nil
	})
}

// Invalidate drops the user's snapshot. Invalidation bypasses the breaker
// so that a recovering Redis never keeps a stale value.
func (c *SnapshotCache) Invalidate(ctx context.Context, userID string) error {
	return c.cache.Delete(ctx, c.key(userID))
}

// InvalidateAll drops every snapshot.
func (c *SnapshotCache) InvalidateAll(ctx context.Context) error {
	n, err := c.cache.DeleteByPattern(ctx, c.key("*"))
	if err != nil {
		return err
	}
	c.logger.Debug("snapshot cache flushed", "keys", n)
	return nil
}
