package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper claims a key once per TTL window in Redis. The API uses it to
// drop client retries of the same Idempotency-Key.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{rdb: rdb, ttl: ttl, logger: logger}
}

// DedupKey formats the Redis key for scope and key.
func DedupKey(scope, key string) string {
	return "dedup:" + scope + ":" + key
}

// AcquireOnce returns true the first time scope+key is seen within the TTL
// and false for duplicates.
func (d *Deduper) AcquireOnce(ctx context.Context, scope, key string) bool {
	redisKey := DedupKey(scope, key)

	ok, err := d.rdb.SetNX(ctx, redisKey, 1, d.ttl).Result()
	if err != nil {
		// fail open while Redis is unreachable
		d.logger.Warn("redis dedup check failed, allowing request",
			zap.String("scope", scope),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("skipped duplicate request",
			zap.String("scope", scope),
			zap.String("dedup_key", redisKey),
		)
	}
	return ok
}

// Release forgets key so a failed request can be retried.
func (d *Deduper) Release(ctx context.Context, scope, key string) {
	if err := d.rdb.Del(ctx, DedupKey(scope, key)).Err(); err != nil {
		d.logger.Warn("redis dedup release failed", zap.String("scope", scope), zap.Error(err))
	}
}
