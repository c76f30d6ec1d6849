package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/fanline/internal/model"
)

var ErrNotFound = errors.New("record not found")

type ConversationRepository interface {
	Get(ctx context.Context, conversationID string) (*model.Conversation, error)
	Ensure(ctx context.Context, conv *model.Conversation, participantIDs []string) error
	UpdateLastMessage(ctx context.Context, conversationID, text, senderID string, at time.Time) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Conversation, error)
}

type conversationRepository struct{ db *gorm.DB }

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// Ensure creates the conversation plus zero-initialized unread rows for every
// participant as one logical step. Concurrent first contacts from both directions
// converge on the same row: every insert is an on-conflict-do-nothing upsert.
func (r *conversationRepository) Ensure(ctx context.Context, conv *model.Conversation, participantIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(conv).Error; err != nil {
			return err
		}
		rows := make([]model.UnreadCount, 0, len(participantIDs))
		for _, uid := range participantIDs {
			rows = append(rows, model.UnreadCount{ConversationID: conv.ConversationID, UserID: uid, Count: 0})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}

func (r *conversationRepository) UpdateLastMessage(ctx context.Context, conversationID, text, senderID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("conversation_id = ?", conversationID).
		Updates(map[string]any{
			"last_message":    text,
			"last_message_by": senderID,
			"last_message_at": at,
		}).Error
}

// ListByUser finds the user's conversations through their unread rows (one exists
// per participant from Ensure), most recently active first.
func (r *conversationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN unread_counts ON unread_counts.conversation_id = conversations.conversation_id").
		Where("unread_counts.user_id = ?", userID).
		Order("conversations.last_message_at DESC").
		Limit(limit).
		Find(&convs).Error
	return convs, err
}
