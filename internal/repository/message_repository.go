package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/d60-Lab/fanline/internal/model"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	Get(ctx context.Context, messageID string) (*model.Message, error)
	ListBefore(ctx context.Context, conversationID string, before *time.Time, limit int) ([]*model.Message, error)
	ListActiveFromOthers(ctx context.Context, conversationID, userID string) ([]*model.Message, error)
	SoftDelete(ctx context.Context, messageID string, at time.Time) error
	SoftDeleteConversation(ctx context.Context, conversationID string, at time.Time) error
	SetReactions(ctx context.Context, messageID string, reactions map[string]interface{}) error
	SetStatus(ctx context.Context, messageID, status string) error
	Search(ctx context.Context, conversationID, query string, limit int) ([]*model.Message, error)
	ListMedia(ctx context.Context, conversationID string, limit int) ([]*model.Message, error)
}

type messageRepository struct{ db *gorm.DB }

func NewMessageRepository(db *gorm.DB) MessageRepository { return &messageRepository{db: db} }

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) Get(ctx context.Context, messageID string) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).Where("id = ?", messageID).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListBefore pages backwards through history; results come back in chronological
// order, ready for the client to prepend.
func (r *messageRepository) ListBefore(ctx context.Context, conversationID string, before *time.Time, limit int) ([]*model.Message, error) {
	q := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false)
	if before != nil {
		q = q.Where("created_at < ?", *before)
	}
	var msgs []*model.Message
	if err := q.Order("created_at DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListActiveFromOthers is the mark-as-read scan: every not-deleted message in the
// conversation authored by someone else. O(messages-in-conversation) by design.
func (r *messageRepository) ListActiveFromOthers(ctx context.Context, conversationID, userID string) ([]*model.Message, error) {
	var msgs []*model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND sender_id <> ? AND is_deleted = ?", conversationID, userID, false).
		Find(&msgs).Error
	return msgs, err
}

func (r *messageRepository) SoftDelete(ctx context.Context, messageID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": at,
			"content":    model.DeletedPlaceholder,
		}).Error
}

func (r *messageRepository) SoftDeleteConversation(ctx context.Context, conversationID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("conversation_id = ?", conversationID).
		Updates(map[string]any{"is_deleted": true, "deleted_at": at}).Error
}

func (r *messageRepository) SetReactions(ctx context.Context, messageID string, reactions map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ?", messageID).
		Update("reactions", datatypes.JSONMap(reactions)).Error
}

func (r *messageRepository) SetStatus(ctx context.Context, messageID, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ?", messageID).
		Update("status", status).Error
}

func (r *messageRepository) Search(ctx context.Context, conversationID, query string, limit int) ([]*model.Message, error) {
	var msgs []*model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = ? AND content LIKE ?", conversationID, false, "%"+query+"%").
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

func (r *messageRepository) ListMedia(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	var msgs []*model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = ? AND message_type IN ?",
			conversationID, false, []string{model.MessageTypeImage, model.MessageTypeVideo}).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}
