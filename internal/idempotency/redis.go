package idempotency

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "storefront:processed_session:"

// RedisLedger shares the duplicate filter across instances. Still advisory:
// errors degrade to "not processed" and the database constraint backstops.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisLedger(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisLedger {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisLedger{
		client: client,
		ttl:    ttl,
		log:    log.Named("idempotency.redis"),
	}
}

func (l *RedisLedger) HasProcessed(ctx context.Context, sessionID string) bool {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false
	}
	exists, err := l.client.Exists(ctx, redisKeyPrefix+sessionID).Result()
	if err != nil {
		l.log.Warn("redis lookup failed, treating session as unprocessed", zap.Error(err))
		return false
	}
	return exists > 0
}

func (l *RedisLedger) MarkProcessed(ctx context.Context, sessionID string) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	if err := l.client.SetNX(ctx, redisKeyPrefix+sessionID, "1", l.ttl).Err(); err != nil {
		l.log.Warn("redis mark failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

var _ Ledger = (*RedisLedger)(nil)
