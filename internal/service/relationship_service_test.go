package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/fanline/internal/cache"
	"github.com/d60-Lab/fanline/internal/repository"
)

func newRelationshipEnv(t *testing.T) (RelationshipService, *cache.RelationshipCache) {
	t.Helper()
	db := newTestDB(t)
	_, client := newTestRedis(t)
	relationships := cache.NewRelationshipCache(client, time.Hour)
	svc := NewRelationshipService(
		repository.NewFollowRepository(db),
		repository.NewFanRepository(db),
		relationships,
		NewBestEffort(),
	)
	return svc, relationships
}

func TestFollowRefusesSelf(t *testing.T) {
	svc, _ := newRelationshipEnv(t)
	require.ErrorIs(t, svc.Follow(context.Background(), "alice", "alice"), ErrFollowSelf)
}

func TestFollowIsIdempotentAndWarmsCaches(t *testing.T) {
	svc, relationships := newRelationshipEnv(t)
	ctx := context.Background()

	require.NoError(t, svc.Follow(ctx, "alice", "bob"))
	require.NoError(t, svc.Follow(ctx, "alice", "bob"))

	following, hit, err := relationships.GetFollowing(ctx, "alice")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, []string{"bob"}, following)

	followers, hit, err := relationships.GetFollowers(ctx, "bob")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, []string{"alice"}, followers)
}

func TestUnfollowUpdatesCaches(t *testing.T) {
	svc, relationships := newRelationshipEnv(t)
	ctx := context.Background()

	require.NoError(t, svc.Follow(ctx, "alice", "bob"))
	require.NoError(t, svc.Unfollow(ctx, "alice", "bob"))

	followers, hit, err := relationships.GetFollowers(ctx, "bob")
	require.NoError(t, err)
	require.True(t, hit)
	require.Empty(t, followers)
}

func TestCanChatRequiresMutualFollow(t *testing.T) {
	svc, _ := newRelationshipEnv(t)
	ctx := context.Background()

	require.NoError(t, svc.Follow(ctx, "alice", "bob"))
	ok, err := svc.CanChat(ctx, "alice", "bob")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, svc.Follow(ctx, "bob", "alice"))
	ok, err = svc.CanChat(ctx, "alice", "bob")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestListChatable(t *testing.T) {
	svc, _ := newRelationshipEnv(t)
	ctx := context.Background()

	// mutual with bob, one-way with carol
	require.NoError(t, svc.Follow(ctx, "alice", "bob"))
	require.NoError(t, svc.Follow(ctx, "bob", "alice"))
	require.NoError(t, svc.Follow(ctx, "alice", "carol"))

	ids, err := svc.ListChatable(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, ids)
}
