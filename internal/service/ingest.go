package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/d60-Lab/fanline/internal/bus"
)

// RegisterFeedHandlers binds each event type to exactly one feed handler.
// Engagement increments are idempotent only per delivery; with at-least-once
// delivery a redelivered like can double-count, a documented trade-off of the
// disposable score cache.
func RegisterFeedHandlers(c *bus.Consumer, feed *FeedService) {
	c.Handle(bus.EventPostCreated, func(ctx context.Context, env *bus.Envelope) error {
		var data bus.PostCreated
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return fmt.Errorf("decode post.created: %w", err)
		}
		if data.PostID == "" || data.AuthorID == "" {
			return fmt.Errorf("post.created missing postId/authorId")
		}
		return feed.AddPostToFollowerFeeds(ctx, data.AuthorID, data.PostID)
	})

	c.Handle(bus.EventLikeCreated, func(ctx context.Context, env *bus.Envelope) error {
		var data bus.Engagement
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return fmt.Errorf("decode like.created: %w", err)
		}
		if data.PostID == "" {
			return fmt.Errorf("like.created missing postId")
		}
		return feed.UpdateEngagementLike(ctx, data.PostID)
	})

	c.Handle(bus.EventCommentCreated, func(ctx context.Context, env *bus.Envelope) error {
		var data bus.Engagement
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return fmt.Errorf("decode comment.created: %w", err)
		}
		if data.PostID == "" {
			return fmt.Errorf("comment.created missing postId")
		}
		return feed.UpdateEngagementComment(ctx, data.PostID)
	})
}
