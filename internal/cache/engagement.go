package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// EngagementCache keeps the decaying per-post engagement counters. Every
// increment resets the TTL, so a post's score survives exactly as long as it
// keeps receiving interactions.
type EngagementCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewEngagementCache(rdb *redis.Client, ttl time.Duration) *EngagementCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &EngagementCache{rdb: rdb, ttl: ttl}
}

func engagementKey(postID string) string { return fmt.Sprintf("post:engagement:%s", postID) }

func (e *EngagementCache) Incr(ctx context.Context, postID string, weight int64) error {
	pipe := e.rdb.Pipeline()
	pipe.IncrBy(ctx, engagementKey(postID), weight)
	pipe.Expire(ctx, engagementKey(postID), e.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (e *EngagementCache) Get(ctx context.Context, postID string) (int64, error) {
	v, err := e.rdb.Get(ctx, engagementKey(postID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	return n, nil
}

// GetMulti resolves scores for a page of posts in one round trip; expired or
// absent scores come back as 0.
func (e *EngagementCache) GetMulti(ctx context.Context, postIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(postIDs))
	for i, id := range postIDs {
		keys[i] = engagementKey(id)
	}
	vals, err := e.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		out[postIDs[i]] = 0
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				out[postIDs[i]] = n
			}
		}
	}
	return out, nil
}
