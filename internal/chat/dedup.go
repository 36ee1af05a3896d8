package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"omnichat-platform/internal/channel"
	"omnichat-platform/pkg/utils"
)

// RedisDeduper suppresses webhook re-deliveries within a TTL window. Keys
// are scoped per channel so platform message ids cannot collide across
// platforms.
type RedisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

func (d *RedisDeduper) FirstDelivery(ctx context.Context, ct channel.Type, platformMessageID string) (bool, error) {
	key := fmt.Sprintf("webhook:dedup:%s:%s", ct, platformMessageID)
	return utils.FirstDelivery(ctx, d.rdb, key, d.ttl)
}
