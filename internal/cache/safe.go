package cache

import (
	"context"
	"time"

	"litlens/internal/metrics"
	"litlens/pkg/logging"

	"go.uber.org/zap"
)

// SafeCache wraps a Store with logging and metrics, and degrades every
// transport failure to a miss/no-op. Caching is a performance optimization,
// not a correctness dependency: callers get a negative result instead of an
// error and the service keeps working with the cache fully down.
type SafeCache struct {
	store      Store
	defaultTTL time.Duration
}

// NewSafeCache wraps store. defaultTTL is applied by SetDefault.
func NewSafeCache(store Store, defaultTTL time.Duration) *SafeCache {
	return &SafeCache{store: store, defaultTTL: defaultTTL}
}

// Get returns the cached value for key, or (nil, false) on miss or error.
func (c *SafeCache) Get(ctx context.Context, key string) ([]byte, bool) {
	start := time.Now()
	value, ok, err := c.store.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	result := "miss"
	if err != nil {
		result = "error"
		metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
	} else if ok {
		result = "hit"
		metrics.CacheHitsTotal.WithLabelValues(entryKind(key)).Inc()
	}

	fields := []zap.Field{
		zap.String("cache_key", key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	}
	if id, ok := bookIDFromKey(key); ok {
		fields = append(fields, zap.String("book_id", id))
	}

	if err != nil {
		logger.Warn("cache_get", append(fields, zap.Error(err))...)
		return nil, false
	}
	logger.Debug("cache_get", fields...)
	return value, ok
}

// Set stores value under key with the given ttl (0 = no expiry). Returns
// false when the write failed; callers are expected to carry on regardless.
func (c *SafeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	start := time.Now()
	err := c.store.Set(ctx, key, value, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	fields := []zap.Field{
		zap.String("cache_key", key),
		zap.Duration("ttl", ttl),
		zap.Int("value_bytes", len(value)),
		zap.Float64("latency_ms", latencyMs),
	}
	if id, ok := bookIDFromKey(key); ok {
		fields = append(fields, zap.String("book_id", id))
	}

	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("set").Inc()
		logger.Warn("cache_set", append(fields, zap.Error(err))...)
		return false
	}
	logger.Debug("cache_set", fields...)
	return true
}

// SetDefault stores value with the configured default TTL.
func (c *SafeCache) SetDefault(ctx context.Context, key string, value []byte) bool {
	return c.Set(ctx, key, value, c.defaultTTL)
}

// Delete removes key. Returns false on transport failure.
func (c *SafeCache) Delete(ctx context.Context, key string) bool {
	err := c.store.Delete(ctx, key)
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("delete").Inc()
		logging.L(ctx).Warn("cache_delete",
			zap.String("cache_key", key),
			zap.Error(err),
		)
		return false
	}
	logging.L(ctx).Debug("cache_delete", zap.String("cache_key", key))
	return true
}

// Exists reports whether key is present. Errors read as absent.
func (c *SafeCache) Exists(ctx context.Context, key string) bool {
	ok, err := c.store.Exists(ctx, key)
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("exists").Inc()
		logging.L(ctx).Warn("cache_exists",
			zap.String("cache_key", key),
			zap.Error(err),
		)
		return false
	}
	return ok
}
