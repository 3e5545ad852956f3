package marketplace

import (
	"context"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"go.uber.org/zap"
)

// CachedFetcher serves recent snapshots from a cache before asking the
// upstream fetcher. Cache hits come back with Cached set. Cache failures
// degrade to a plain fetch.
type CachedFetcher struct {
	next   domain.Fetcher
	cache  domain.SnapshotCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedFetcher(next domain.Fetcher, cache domain.SnapshotCache, ttl time.Duration, logger *zap.Logger) *CachedFetcher {
	return &CachedFetcher{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedFetcher) Fetch(ctx context.Context, marketplace domain.Marketplace, externalID string) (*domain.ProductSnapshot, error) {
	cached, err := c.cache.Get(ctx, marketplace, externalID)
	if err != nil {
		c.logger.Warn("snapshot cache read failed", zap.String("marketplace", string(marketplace)), zap.String("external_id", externalID), zap.Error(err))
	}
	if cached != nil {
		cached.Cached = true
		return cached, nil
	}

	snapshot, err := c.next.Fetch(ctx, marketplace, externalID)
	if err != nil || snapshot == nil {
		return snapshot, err
	}

	if err := c.cache.Set(ctx, marketplace, externalID, *snapshot, c.ttl); err != nil {
		c.logger.Warn("snapshot cache write failed", zap.String("marketplace", string(marketplace)), zap.String("external_id", externalID), zap.Error(err))
	}
	return snapshot, nil
}
