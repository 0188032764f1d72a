package tokens

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bitekeeper/recipebox/internal/domain/user"
)

const (
	tokenKeyPrefix = "authtoken:"
	userKeyPrefix  = "authuser:"

	// how long the per-user hash index sticks around between refreshes
	userIndexTTL = 24 * time.Hour
)

// RedisCache keeps resolved users keyed by token hash, plus a per-user
// set of hashes so a whole account can be flushed at once. Every
// operation is best effort: a broken Redis degrades to database lookups.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) GetUser(ctx context.Context, tokenHash string) (user.User, bool) {
	raw, err := c.rdb.Get(ctx, tokenKeyPrefix+tokenHash).Bytes()
	if err != nil {
		return user.User{}, false
	}
	var u user.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return user.User{}, false
	}
	return u, true
}

func (c *RedisCache) SetUser(ctx context.Context, tokenHash, userID string, u user.User, ttl time.Duration) {
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, tokenKeyPrefix+tokenHash, raw, ttl)
	pipe.SAdd(ctx, userKeyPrefix+userID, tokenHash)
	pipe.Expire(ctx, userKeyPrefix+userID, userIndexTTL)
	_, _ = pipe.Exec(ctx)
}

func (c *RedisCache) Invalidate(ctx context.Context, tokenHash string) {
	_ = c.rdb.Del(ctx, tokenKeyPrefix+tokenHash).Err()
}

func (c *RedisCache) InvalidateUser(ctx context.Context, userID string) {
	hashes, err := c.rdb.SMembers(ctx, userKeyPrefix+userID).Result()
	if err != nil {
		return
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, tokenKeyPrefix+h)
	}
	keys = append(keys, userKeyPrefix+userID)
	_ = c.rdb.Del(ctx, keys...).Err()
}
