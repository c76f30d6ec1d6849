package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TimelineEntry is one (post, score) pair inside a user's timeline ZSET.
type TimelineEntry struct {
	PostID string
	Score  float64
}

// TimelineCache holds per-user bounded ranked timelines in redis sorted sets.
// The store is disposable: every write refreshes the TTL and the reader can
// rebuild a missing key from the source of truth.
type TimelineCache struct {
	rdb      *redis.Client
	size     int
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewTimelineCache(rdb *redis.Client, size int, ttl, emptyTTL time.Duration) *TimelineCache {
	if size <= 0 {
		size = 100
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if emptyTTL <= 0 {
		emptyTTL = time.Minute
	}
	return &TimelineCache{rdb: rdb, size: size, ttl: ttl, emptyTTL: emptyTTL}
}

func feedKey(userID string) string      { return fmt.Sprintf("feed:%s", userID) }
func feedEmptyKey(userID string) string { return fmt.Sprintf("feed:empty:%s", userID) }

// Push fans one post out to every follower timeline in a single pipelined batch:
// insert, trim to the newest `size` by rank, refresh TTL. Not atomic across
// followers; a crash mid-batch leaves a partial fan-out, which is fine for a
// reconstructable cache.
func (t *TimelineCache) Push(ctx context.Context, followerIDs []string, postID string, at time.Time) error {
	if len(followerIDs) == 0 {
		return nil
	}
	score := float64(at.UnixMilli())
	pipe := t.rdb.Pipeline()
	for _, fid := range followerIDs {
		key := feedKey(fid)
		pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: postID})
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-(t.size + 1)))
		pipe.Expire(ctx, key, t.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (t *TimelineCache) Exists(ctx context.Context, userID string) (bool, error) {
	n, err := t.rdb.Exists(ctx, feedKey(userID)).Result()
	return n > 0, err
}

// Range reads [start, stop] in descending score order.
func (t *TimelineCache) Range(ctx context.Context, userID string, start, stop int64) ([]string, error) {
	return t.rdb.ZRevRange(ctx, feedKey(userID), start, stop).Result()
}

func (t *TimelineCache) Card(ctx context.Context, userID string) (int64, error) {
	return t.rdb.ZCard(ctx, feedKey(userID)).Result()
}

// Rebuild replaces the timeline wholesale; used by the lazy regenerator.
func (t *TimelineCache) Rebuild(ctx context.Context, userID string, entries []TimelineEntry) error {
	key := feedKey(userID)
	pipe := t.rdb.Pipeline()
	pipe.Del(ctx, key)
	if len(entries) > 0 {
		zs := make([]redis.Z, len(entries))
		for i, e := range entries {
			zs[i] = redis.Z{Score: e.Score, Member: e.PostID}
		}
		pipe.ZAdd(ctx, key, zs...)
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-(t.size + 1)))
		pipe.Expire(ctx, key, t.ttl)
	}
	pipe.Del(ctx, feedEmptyKey(userID))
	_, err := pipe.Exec(ctx)
	return err
}

// MarkEmpty negative-caches a regeneration that produced nothing, so repeated
// misses don't hammer the source store on every request.
func (t *TimelineCache) MarkEmpty(ctx context.Context, userID string) error {
	return t.rdb.Set(ctx, feedEmptyKey(userID), 1, t.emptyTTL).Err()
}

func (t *TimelineCache) RecentlyEmpty(ctx context.Context, userID string) (bool, error) {
	n, err := t.rdb.Exists(ctx, feedEmptyKey(userID)).Result()
	return n > 0, err
}

func (t *TimelineCache) Invalidate(ctx context.Context, userID string) error {
	return t.rdb.Del(ctx, feedKey(userID), feedEmptyKey(userID)).Err()
}
