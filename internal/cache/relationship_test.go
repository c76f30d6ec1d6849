package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRelationshipCacheRoundTrip(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	rel := NewRelationshipCache(client, time.Hour)

	_, hit, err := rel.GetFollowers(ctx, "u1")
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, rel.SetFollowers(ctx, "u1", []string{"f1", "f2"}))
	ids, hit, err := rel.GetFollowers(ctx, "u1")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, []string{"f1", "f2"}, ids)
}

func TestRelationshipCacheEmptyListIsAHit(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	rel := NewRelationshipCache(client, time.Hour)

	require.NoError(t, rel.SetFollowing(ctx, "u1", nil))
	ids, hit, err := rel.GetFollowing(ctx, "u1")
	require.NoError(t, err)
	require.True(t, hit)
	require.Empty(t, ids)
}

func TestRelationshipCacheExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	rel := NewRelationshipCache(client, time.Hour)

	require.NoError(t, rel.SetFollowers(ctx, "u1", []string{"f1"}))
	mr.FastForward(2 * time.Hour)
	_, hit, err := rel.GetFollowers(ctx, "u1")
	require.NoError(t, err)
	require.False(t, hit)
}

func TestRelationshipCacheUnreadableEntryIsAMiss(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	rel := NewRelationshipCache(client, time.Hour)

	mr.Set("followers:u1", "not json")
	_, hit, err := rel.GetFollowers(ctx, "u1")
	require.NoError(t, err)
	require.False(t, hit)
}
