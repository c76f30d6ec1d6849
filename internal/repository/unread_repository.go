package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/fanline/internal/model"
)

type UnreadRepository interface {
	Get(ctx context.Context, conversationID, userID string) (*model.UnreadCount, error)
	Increment(ctx context.Context, conversationID, userID string) error
	Reset(ctx context.Context, conversationID, userID string, at time.Time) error
	SumByUser(ctx context.Context, userID string) (int64, error)
}

type unreadRepository struct{ db *gorm.DB }

func NewUnreadRepository(db *gorm.DB) UnreadRepository { return &unreadRepository{db: db} }

func (r *unreadRepository) Get(ctx context.Context, conversationID, userID string) (*model.UnreadCount, error) {
	var row model.UnreadCount
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Increment bumps an existing counter in place. Rows are created when the
// conversation is ensured; a missing row is a no-op, matching the write path's
// best-effort contract.
func (r *unreadRepository) Increment(ctx context.Context, conversationID, userID string) error {
	return r.db.WithContext(ctx).
		Model(&model.UnreadCount{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("count", gorm.Expr("count + 1")).Error
}

func (r *unreadRepository) Reset(ctx context.Context, conversationID, userID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.UnreadCount{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]any{"count": 0, "last_read_at": at}).Error
}

func (r *unreadRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.UnreadCount{}).
		Select("COALESCE(SUM(count), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	return total, err
}
