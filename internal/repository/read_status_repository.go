package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/fanline/internal/model"
)

type ReadStatusRepository interface {
	Get(ctx context.Context, messageID, userID string) (*model.MessageReadStatus, error)
	Upsert(ctx context.Context, messageID, userID, status string, at time.Time) (bool, error)
}

type readStatusRepository struct{ db *gorm.DB }

func NewReadStatusRepository(db *gorm.DB) ReadStatusRepository {
	return &readStatusRepository{db: db}
}

func (r *readStatusRepository) Get(ctx context.Context, messageID, userID string) (*model.MessageReadStatus, error) {
	var row model.MessageReadStatus
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert writes the per-recipient status, refusing downgrades: SENT -> DELIVERED ->
// READ is monotonic, so a late DELIVERED never overwrites READ. Reports whether the
// row actually advanced.
func (r *readStatusRepository) Upsert(ctx context.Context, messageID, userID, status string, at time.Time) (bool, error) {
	advanced := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.MessageReadStatus
		err := tx.Where("message_id = ? AND user_id = ?", messageID, userID).First(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			advanced = true
			return tx.Create(&model.MessageReadStatus{
				MessageID: messageID,
				UserID:    userID,
				Status:    status,
				Timestamp: at,
			}).Error
		}
		if err != nil {
			return err
		}
		if model.StatusRank(status) <= model.StatusRank(cur.Status) {
			return nil
		}
		advanced = true
		return tx.Model(&model.MessageReadStatus{}).
			Where("message_id = ? AND user_id = ?", messageID, userID).
			Updates(map[string]any{"status": status, "timestamp": at}).Error
	})
	return advanced, err
}
