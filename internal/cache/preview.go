// internal/cache/preview.go
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PreviewCache memoizes audience-preview counts. The TTL is short because a
// predicate with a days-since clause drifts with the clock. A nil receiver
// disables caching, so callers never branch on configuration.
type PreviewCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewPreviewCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *PreviewCache {
	if rdb == nil {
		return nil
	}
	return &PreviewCache{rdb: rdb, ttl: ttl, log: log}
}

func key(rules []byte) string {
	sum := sha256.Sum256(rules)
	return "preview:" + hex.EncodeToString(sum[:])
}

func (c *PreviewCache) Get(ctx context.Context, rules []byte) (int, bool) {
	if c == nil {
		return 0, false
	}
	val, err := c.rdb.Get(ctx, key(rules)).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("preview cache read failed", zap.Error(err))
		}
		return 0, false
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return count, true
}

func (c *PreviewCache) Set(ctx context.Context, rules []byte, count int) {
	if c == nil {
		return
	}
	if err := c.rdb.Set(ctx, key(rules), strconv.Itoa(count), c.ttl).Err(); err != nil {
		c.log.Warn("preview cache write failed", zap.Error(err))
	}
}
