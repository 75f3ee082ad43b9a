package cache

import (
	"context"
	"time"
)

// Store is the raw key-value backend. Implemented by the memory cache (dev,
// tests) and the Redis cache (prod). A ttl of zero means "no expiry".
//
// Store methods return transport errors; callers that must never fail on
// cache trouble should go through SafeCache, which degrades every error to a
// miss/no-op.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
