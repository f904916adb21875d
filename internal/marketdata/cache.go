package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-backtester/pkg/types"
)

// CachedProvider wraps a Provider with an in-memory bar cache keyed by
// symbol, timeframe and date range. Entries expire after the TTL so a
// long-running server picks up newly published bars.
type CachedProvider struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	inner   Provider
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	bars      []types.Bar
	fetchedAt time.Time
}

// NewCachedProvider creates a caching wrapper around inner. A ttl of zero
// keeps entries for the lifetime of the process.
func NewCachedProvider(logger *zap.Logger, inner Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		logger:  logger,
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// GetBars returns cached bars when fresh, delegating to the inner provider
// otherwise. Failed fetches are never cached.
func (c *CachedProvider) GetBars(ctx context.Context, symbol string, timeframe types.Timeframe, start, end time.Time) ([]types.Bar, error) {
	key := fmt.Sprintf("%s_%s_%s_%s", symbol, timeframe,
		start.Format("2006-01-02"), end.Format("2006-01-02"))

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && (c.ttl == 0 || time.Since(entry.fetchedAt) < c.ttl) {
		c.logger.Debug("bar cache hit", zap.String("key", key))
		return append([]types.Bar(nil), entry.bars...), nil
	}

	bars, err := c.inner.GetBars(ctx, symbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{bars: bars, fetchedAt: time.Now()}
	c.mu.Unlock()

	return append([]types.Bar(nil), bars...), nil
}
