package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/fanline/internal/bus"
	"github.com/d60-Lab/fanline/internal/cache"
	"github.com/d60-Lab/fanline/internal/repository"
)

func TestFeedHandlersEndToEnd(t *testing.T) {
	db := newTestDB(t)
	_, client := newTestRedis(t)
	ctx := context.Background()

	timelines := cache.NewTimelineCache(client, 100, 7*24*time.Hour, time.Minute)
	engagement := cache.NewEngagementCache(client, 7*24*time.Hour)
	relationships := cache.NewRelationshipCache(client, time.Hour)
	feed := NewFeedService(
		timelines, engagement, relationships,
		repository.NewPostRepository(db), repository.NewFollowRepository(db),
		NewBestEffort(), 100, 1, 2,
	)
	require.NoError(t, relationships.SetFollowers(ctx, "author", []string{"f1"}))

	consumer := bus.NewConsumer(client, []string{"POST_TOPIC"}, "feed-service-group", 1, 50*time.Millisecond)
	RegisterFeedHandlers(consumer, feed)
	stop, err := consumer.Start(ctx)
	require.NoError(t, err)
	defer stop()

	pub := bus.NewPublisher(client)
	require.NoError(t, pub.Publish(ctx, "POST_TOPIC", bus.EventPostCreated,
		bus.PostCreated{PostID: "p1", AuthorID: "author", Username: "alice"}))
	require.NoError(t, pub.Publish(ctx, "POST_TOPIC", bus.EventLikeCreated,
		bus.Engagement{PostID: "p1", UserID: "f1"}))
	require.NoError(t, pub.Publish(ctx, "POST_TOPIC", bus.EventCommentCreated,
		bus.Engagement{PostID: "p1", UserID: "f1"}))

	require.Eventually(t, func() bool {
		ids, err := timelines.Range(ctx, "f1", 0, -1)
		if err != nil || len(ids) != 1 {
			return false
		}
		score, err := engagement.Get(ctx, "p1")
		return err == nil && score == 3
	}, 5*time.Second, 10*time.Millisecond)
}
