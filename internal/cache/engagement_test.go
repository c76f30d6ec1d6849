package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEngagementIncrAndGet(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	engagement := NewEngagementCache(client, 7*24*time.Hour)

	// two likes and one comment at production weights
	require.NoError(t, engagement.Incr(ctx, "p1", 1))
	require.NoError(t, engagement.Incr(ctx, "p1", 1))
	require.NoError(t, engagement.Incr(ctx, "p1", 2))

	score, err := engagement.Get(ctx, "p1")
	require.NoError(t, err)
	require.EqualValues(t, 4, score)
}

func TestEngagementMissingIsZero(t *testing.T) {
	_, client := newTestRedis(t)
	score, err := NewEngagementCache(client, time.Hour).Get(context.Background(), "nope")
	require.NoError(t, err)
	require.EqualValues(t, 0, score)
}

func TestEngagementGetMulti(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	engagement := NewEngagementCache(client, time.Hour)

	require.NoError(t, engagement.Incr(ctx, "p1", 3))
	require.NoError(t, engagement.Incr(ctx, "p2", 1))

	scores, err := engagement.GetMulti(ctx, []string{"p1", "p2", "p3"})
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"p1": 3, "p2": 1, "p3": 0}, scores)
}

func TestEngagementIncrRefreshesTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	ttl := 7 * 24 * time.Hour
	engagement := NewEngagementCache(client, ttl)

	require.NoError(t, engagement.Incr(ctx, "p1", 1))
	mr.FastForward(24 * time.Hour)
	require.NoError(t, engagement.Incr(ctx, "p1", 1))
	require.Equal(t, ttl, mr.TTL("post:engagement:p1"))
}
