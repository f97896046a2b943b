package usage

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

type Config struct {
	Backend   string
	Retention time.Duration
	Prefix    string
}

// NewLedger selects the backend named by cfg.Backend. redisClient is only
// used by the redis backend and must be non-nil for it.
func NewLedger(cfg Config, redisClient *redis.Client) (Ledger, error) {
	switch cfg.Backend {
	case BackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("usage: redis backend requires a redis client")
		}
		return NewRedisLedger(redisClient, RedisConfig{
			Prefix:    cfg.Prefix,
			Retention: cfg.Retention,
		}), nil
	case BackendNone:
		return nopLedger{}, nil
	case BackendMemory, "":
		return NewMemoryLedger(cfg.Retention, 0), nil
	default:
		return nil, fmt.Errorf("usage: unknown backend %q", cfg.Backend)
	}
}
