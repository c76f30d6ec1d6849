package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RelationshipCache holds TTL-bound follower/following id lists. Entries are
// pushed by the relationship-change notifier or filled on demand; stale ones
// simply expire.
type RelationshipCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRelationshipCache(rdb *redis.Client, ttl time.Duration) *RelationshipCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RelationshipCache{rdb: rdb, ttl: ttl}
}

func followersKey(userID string) string { return fmt.Sprintf("followers:%s", userID) }
func followingKey(userID string) string { return fmt.Sprintf("following:%s", userID) }

func (r *RelationshipCache) getList(ctx context.Context, key string) ([]string, bool, error) {
	data, err := r.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		// unreadable entry behaves like a miss, the TTL will reap it
		return nil, false, nil
	}
	return ids, true, nil
}

func (r *RelationshipCache) setList(ctx context.Context, key string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, key, payload, r.ttl).Err()
}

// GetFollowers reports (ids, hit). A miss is not an error: the fan-out path
// treats it as "no followers" rather than blocking on the source of truth.
func (r *RelationshipCache) GetFollowers(ctx context.Context, userID string) ([]string, bool, error) {
	return r.getList(ctx, followersKey(userID))
}

func (r *RelationshipCache) GetFollowing(ctx context.Context, userID string) ([]string, bool, error) {
	return r.getList(ctx, followingKey(userID))
}

func (r *RelationshipCache) SetFollowers(ctx context.Context, userID string, ids []string) error {
	return r.setList(ctx, followersKey(userID), ids)
}

func (r *RelationshipCache) SetFollowing(ctx context.Context, userID string, ids []string) error {
	return r.setList(ctx, followingKey(userID), ids)
}
