package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/fanline/internal/model"
)

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	ListRecentByAuthors(ctx context.Context, authorIDs []string, since time.Time, limit int) ([]*model.Post, error)
}

type postRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(post).Error
}

// ListRecentByAuthors feeds the lazy regenerator: the newest posts authored by any
// of authorIDs within the lookback window, newest first.
func (r *postRepository) ListRecentByAuthors(ctx context.Context, authorIDs []string, since time.Time, limit int) ([]*model.Post, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	var posts []*model.Post
	err := r.db.WithContext(ctx).
		Where("author_id IN ? AND created_at >= ?", authorIDs, since).
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}
