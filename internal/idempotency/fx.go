package idempotency

import (
	"github.com/emberhollow/storefront/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("idempotency",
	fx.Provide(NewFromConfig),
)

// NewFromConfig picks the redis-backed ledger when REDIS_ADDR is set,
// otherwise the bounded in-memory one.
func NewFromConfig(cfg config.Config, log *zap.Logger) Ledger {
	if cfg.RedisAddr == "" {
		return NewMemoryLedger(defaultMaxEntries)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return NewRedisLedger(client, 0, log)
}
