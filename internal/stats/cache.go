package stats

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/metrics"
	"github.com/angelmondragon/replenish-backend/pkg/redis"
)

const defaultCacheTTL = 5 * time.Minute

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	CounterKey(parts ...string) string
	CacheKey(parts ...string) string
}

// Cache stores DCStats under a per-(client, dc) generation. Writers bump the
// generation after commit, so entries computed before a write are never read.
type Cache struct {
	store   cacheStore
	ttl     time.Duration
	logg    *logger.Logger
	metrics *metrics.ReplenishmentMetrics
}

func NewCache(store cacheStore, ttl time.Duration, logg *logger.Logger, m *metrics.ReplenishmentMetrics) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{store: store, ttl: ttl, logg: logg, metrics: m}
}

func (c *Cache) generationKey(clientID, dcID uuid.UUID) string {
	return c.store.CounterKey("stats_gen", clientID.String(), dcID.String())
}

func (c *Cache) generation(ctx context.Context, clientID, dcID uuid.UUID) (string, error) {
	gen, err := c.store.Get(ctx, c.generationKey(clientID, dcID))
	if redis.IsNil(err) {
		return "0", nil
	}
	return gen, err
}

// load returns the cached stats for the current generation and the
// generation itself, which store must reuse.
func (c *Cache) load(ctx context.Context, clientID, dcID uuid.UUID) (*DCStats, string, bool) {
	gen, err := c.generation(ctx, clientID, dcID)
	if err != nil {
		c.warn(ctx, "stats cache generation lookup failed", err)
		c.metrics.ObserveStatsCache("error")
		return nil, "", false
	}
	raw, err := c.store.Get(ctx, c.store.CacheKey("stats", clientID.String(), dcID.String(), gen))
	if redis.IsNil(err) {
		c.metrics.ObserveStatsCache("miss")
		return nil, gen, false
	}
	if err != nil {
		c.warn(ctx, "stats cache read failed", err)
		c.metrics.ObserveStatsCache("error")
		return nil, gen, false
	}
	var out DCStats
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		c.warn(ctx, "stats cache entry unreadable", err)
		c.metrics.ObserveStatsCache("error")
		return nil, gen, false
	}
	c.metrics.ObserveStatsCache("hit")
	return &out, gen, true
}

func (c *Cache) save(ctx context.Context, gen string, stats *DCStats) {
	if gen == "" {
		return
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		c.warn(ctx, "stats cache encode failed", err)
		return
	}
	key := c.store.CacheKey("stats", stats.ClientID.String(), stats.DCID.String(), gen)
	if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
		c.warn(ctx, "stats cache write failed", err)
	}
}

// Invalidate bumps the generation for (clientID, dcID).
func (c *Cache) Invalidate(ctx context.Context, clientID, dcID uuid.UUID) {
	gen, err := c.store.Incr(ctx, c.generationKey(clientID, dcID))
	if err != nil {
		c.warn(ctx, "stats cache invalidation failed", err)
		return
	}
	if c.logg != nil {
		c.logg.Debug(c.logg.WithFields(ctx, map[string]any{
			"dc_id":      dcID.String(),
			"generation": strconv.FormatInt(gen, 10),
		}), "stats cache invalidated")
	}
}

func (c *Cache) warn(ctx context.Context, msg string, err error) {
	if c.logg == nil {
		return
	}
	c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), msg)
}
