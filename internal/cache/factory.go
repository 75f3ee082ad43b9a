package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Backend string
	Prefix  string
}

// NewStore selects a Store backend from config. Anything other than "redis"
// gets the in-memory store.
func NewStore(cfg Config, redisClient *redis.Client) Store {
	switch cfg.Backend {
	case "redis":
		return NewRedisStore(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
		})
	default:
		return NewMemoryStore(5 * time.Minute)
	}
}
