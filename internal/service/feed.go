package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/fanline/internal/bus"
	"github.com/d60-Lab/fanline/internal/cache"
	"github.com/d60-Lab/fanline/internal/model"
	"github.com/d60-Lab/fanline/internal/repository"
	"github.com/d60-Lab/fanline/pkg/logger"
)

const regenerationLookback = 7 * 24 * time.Hour

// FeedItem is one ranked entry of a feed page.
type FeedItem struct {
	PostID          string `json:"postId"`
	EngagementScore int64  `json:"engagementScore"`
}

// FeedPage is the paginated read result. Regenerated reports whether this request
// rebuilt the timeline from the source of truth.
type FeedPage struct {
	Posts       []FeedItem `json:"posts"`
	Total       int64      `json:"total"`
	Page        int        `json:"page"`
	Limit       int        `json:"limit"`
	HasMore     bool       `json:"hasMore"`
	Regenerated bool       `json:"regenerated"`
	Message     string     `json:"message,omitempty"`
}

// FeedService implements fan-out-on-write timelines with lazy regeneration.
// Timelines and engagement scores live in redis and are disposable; posts and
// follow edges are the source of truth behind a rebuild.
type FeedService struct {
	timelines     *cache.TimelineCache
	engagement    *cache.EngagementCache
	relationships *cache.RelationshipCache
	posts         repository.PostRepository
	follows       repository.FollowRepository
	best          *BestEffort

	publisher *bus.Publisher
	stream    string

	timelineSize  int
	likeWeight    int64
	commentWeight int64
}

func NewFeedService(
	timelines *cache.TimelineCache,
	engagement *cache.EngagementCache,
	relationships *cache.RelationshipCache,
	posts repository.PostRepository,
	follows repository.FollowRepository,
	best *BestEffort,
	timelineSize int,
	likeWeight, commentWeight int64,
) *FeedService {
	if timelineSize <= 0 {
		timelineSize = 100
	}
	if likeWeight <= 0 {
		likeWeight = 1
	}
	if commentWeight <= 0 {
		commentWeight = 2
	}
	return &FeedService{
		timelines:     timelines,
		engagement:    engagement,
		relationships: relationships,
		posts:         posts,
		follows:       follows,
		best:          best,
		timelineSize:  timelineSize,
		likeWeight:    likeWeight,
		commentWeight: commentWeight,
	}
}

// WithPublisher routes CreatePost through the event stream instead of fanning
// out inline, so REST-created posts take the same path as bus-created ones.
func (s *FeedService) WithPublisher(pub *bus.Publisher, stream string) *FeedService {
	s.publisher = pub
	s.stream = stream
	return s
}

// CreatePost persists a post and triggers its fan-out, via the event stream when
// a publisher is configured and inline otherwise.
func (s *FeedService) CreatePost(ctx context.Context, authorID, username, content, mediaURL string) (*model.Post, error) {
	post := &model.Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Content:   content,
		MediaURL:  mediaURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	if s.publisher != nil {
		err := s.publisher.Publish(ctx, s.stream, bus.EventPostCreated, bus.PostCreated{
			PostID:   post.ID,
			AuthorID: authorID,
			Username: username,
		})
		if err != nil {
			return nil, err
		}
		return post, nil
	}
	return post, s.AddPostToFollowerFeeds(ctx, authorID, post.ID)
}

// AddPostToFollowerFeeds pushes one post into every follower timeline. Followers
// come from the relationship cache only; a miss means an empty fan-out rather
// than a blocking source-of-truth fetch inside the write path.
func (s *FeedService) AddPostToFollowerFeeds(ctx context.Context, authorID, postID string) error {
	followers, hit, err := s.relationships.GetFollowers(ctx, authorID)
	if err != nil {
		return err
	}
	if !hit || len(followers) == 0 {
		logger.Debug("no cached followers, skipping fan-out", zap.String("author", authorID), zap.String("post", postID))
		return nil
	}
	if err := s.timelines.Push(ctx, followers, postID, time.Now()); err != nil {
		return err
	}
	logger.Info("post fanned out", zap.String("post", postID), zap.Int("followers", len(followers)))
	return nil
}

// UpdateEngagementLike / UpdateEngagementComment bump a post's decaying score.
func (s *FeedService) UpdateEngagementLike(ctx context.Context, postID string) error {
	return s.engagement.Incr(ctx, postID, s.likeWeight)
}

func (s *FeedService) UpdateEngagementComment(ctx context.Context, postID string) error {
	return s.engagement.Incr(ctx, postID, s.commentWeight)
}

// GetUserFeed returns one page of the user's timeline, rebuilding it on a cache
// miss. Pages beyond the available range come back empty with hasMore=false.
func (s *FeedService) GetUserFeed(ctx context.Context, userID string, page, limit int) (*FeedPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	out := &FeedPage{Posts: []FeedItem{}, Page: page, Limit: limit}

	exists, err := s.timelines.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		negative, err := s.timelines.RecentlyEmpty(ctx, userID)
		if err != nil {
			return nil, err
		}
		if negative {
			// a recent regeneration found nothing; don't hammer the source store
			return out, nil
		}
		following, err := s.followingIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(following) == 0 {
			out.Message = "User is not following anyone"
			return out, nil
		}
		if err := s.regenerate(ctx, userID, following); err != nil {
			return nil, err
		}
		out.Regenerated = true
	}

	start := int64((page - 1) * limit)
	stop := int64(page*limit - 1)
	postIDs, err := s.timelines.Range(ctx, userID, start, stop)
	if err != nil {
		return nil, err
	}

	scores, err := s.engagement.GetMulti(ctx, postIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range postIDs {
		out.Posts = append(out.Posts, FeedItem{PostID: id, EngagementScore: scores[id]})
	}

	total, err := s.timelines.Card(ctx, userID)
	if err != nil {
		return nil, err
	}
	out.Total = total
	out.HasMore = start+int64(limit) < total
	return out, nil
}

// followingIDs reads the relationship cache and falls through to the follow
// table, refilling the cache best-effort.
func (s *FeedService) followingIDs(ctx context.Context, userID string) ([]string, error) {
	ids, hit, err := s.relationships.GetFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	if hit {
		return ids, nil
	}
	ids, err = s.follows.ListFollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.best.Do(ctx, "cache following", func(ctx context.Context) error {
		return s.relationships.SetFollowing(ctx, userID, ids)
	})
	return ids, nil
}

// regenerate rebuilds a timeline from recent posts of the followed authors. A
// rebuild that finds nothing still marks the timeline as attempted (short
// negative-cache TTL) so repeated misses stay cheap.
func (s *FeedService) regenerate(ctx context.Context, userID string, followingIDs []string) error {
	since := time.Now().Add(-regenerationLookback)
	posts, err := s.posts.ListRecentByAuthors(ctx, followingIDs, since, s.timelineSize)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		logger.Info("regeneration found no posts", zap.String("user", userID))
		return s.timelines.MarkEmpty(ctx, userID)
	}
	entries := make([]cache.TimelineEntry, len(posts))
	for i, p := range posts {
		entries[i] = cache.TimelineEntry{PostID: p.ID, Score: float64(p.CreatedAt.UnixMilli())}
	}
	logger.Info("timeline regenerated", zap.String("user", userID), zap.Int("posts", len(entries)))
	return s.timelines.Rebuild(ctx, userID, entries)
}

// RegenerateUserFeed is the manual trigger. An empty followingIDs slice falls
// back to the follow table.
func (s *FeedService) RegenerateUserFeed(ctx context.Context, userID string, followingIDs []string) error {
	if len(followingIDs) == 0 {
		var err error
		followingIDs, err = s.followingIDs(ctx, userID)
		if err != nil {
			return err
		}
	}
	if len(followingIDs) == 0 {
		return s.timelines.MarkEmpty(ctx, userID)
	}
	return s.regenerate(ctx, userID, followingIDs)
}

// BatchRegenerate warms timelines for many users; per-user failures are counted,
// not fatal.
func (s *FeedService) BatchRegenerate(ctx context.Context, userIDs []string) (succeeded, failed int) {
	for _, uid := range userIDs {
		if err := s.RegenerateUserFeed(ctx, uid, nil); err != nil {
			logger.Warn("batch regeneration failed for user", zap.String("user", uid), zap.Error(err))
			failed++
			continue
		}
		succeeded++
	}
	return succeeded, failed
}

func (s *FeedService) InvalidateFeed(ctx context.Context, userID string) error {
	return s.timelines.Invalidate(ctx, userID)
}

// CacheFollowers / CacheFollowing are the push endpoints used by the
// relationship-change notifier.
func (s *FeedService) CacheFollowers(ctx context.Context, userID string, followerIDs []string) error {
	return s.relationships.SetFollowers(ctx, userID, followerIDs)
}

func (s *FeedService) CacheFollowing(ctx context.Context, userID string, followingIDs []string) error {
	return s.relationships.SetFollowing(ctx, userID, followingIDs)
}
