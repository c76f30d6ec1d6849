package service

import (
	"context"
	"errors"

	"github.com/d60-Lab/fanline/internal/cache"
	"github.com/d60-Lab/fanline/internal/repository"
)

var ErrFollowSelf = errors.New("cannot follow self")

// RelationshipService maintains the follow graph and keeps the redis id lists
// warm. The fan edge is written synchronously; cache refreshes are best effort.
type RelationshipService interface {
	Follow(ctx context.Context, fromUserID, toUserID string) error
	Unfollow(ctx context.Context, fromUserID, toUserID string) error
	CanChat(ctx context.Context, userA, userB string) (bool, error)
	ListChatable(ctx context.Context, userID string) ([]string, error)
}

type relationshipService struct {
	followRepo    repository.FollowRepository
	fanRepo       repository.FanRepository
	relationships *cache.RelationshipCache
	best          *BestEffort
}

func NewRelationshipService(followRepo repository.FollowRepository, fanRepo repository.FanRepository, relationships *cache.RelationshipCache, best *BestEffort) RelationshipService {
	return &relationshipService{followRepo: followRepo, fanRepo: fanRepo, relationships: relationships, best: best}
}

func (s *relationshipService) Follow(ctx context.Context, fromUserID, toUserID string) error {
	if fromUserID == toUserID {
		return ErrFollowSelf
	}
	if err := s.followRepo.Create(ctx, fromUserID, toUserID); err != nil {
		return err
	}
	if err := s.fanRepo.Create(ctx, toUserID, fromUserID); err != nil {
		return err
	}
	s.refreshCaches(ctx, fromUserID, toUserID)
	return nil
}

func (s *relationshipService) Unfollow(ctx context.Context, fromUserID, toUserID string) error {
	if err := s.followRepo.Delete(ctx, fromUserID, toUserID); err != nil {
		return err
	}
	if err := s.fanRepo.Delete(ctx, toUserID, fromUserID); err != nil {
		return err
	}
	s.refreshCaches(ctx, fromUserID, toUserID)
	return nil
}

func (s *relationshipService) refreshCaches(ctx context.Context, fromUserID, toUserID string) {
	s.best.Do(ctx, "refresh following cache", func(ctx context.Context) error {
		ids, err := s.followRepo.ListFollowingIDs(ctx, fromUserID)
		if err != nil {
			return err
		}
		return s.relationships.SetFollowing(ctx, fromUserID, ids)
	})
	s.best.Do(ctx, "refresh followers cache", func(ctx context.Context) error {
		ids, err := s.fanRepo.ListFanIDs(ctx, toUserID)
		if err != nil {
			return err
		}
		return s.relationships.SetFollowers(ctx, toUserID, ids)
	})
}

// CanChat gates 1:1 conversations: both users must follow each other.
func (s *relationshipService) CanChat(ctx context.Context, userA, userB string) (bool, error) {
	ab, err := s.followRepo.Exists(ctx, userA, userB)
	if err != nil || !ab {
		return false, err
	}
	ba, err := s.followRepo.Exists(ctx, userB, userA)
	if err != nil {
		return false, err
	}
	return ba, nil
}

func (s *relationshipService) ListChatable(ctx context.Context, userID string) ([]string, error) {
	return s.followRepo.ListMutualIDs(ctx, userID)
}
