package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	MessageTypeText  = "TEXT"
	MessageTypeImage = "IMAGE"
	MessageTypeVideo = "VIDEO"
	MessageTypeAudio = "AUDIO"
	MessageTypeFile  = "FILE"
)

const (
	StatusSent      = "SENT"
	StatusDelivered = "DELIVERED"
	StatusRead      = "READ"
	StatusFailed    = "FAILED"
)

// DeletedPlaceholder replaces the content of a soft-deleted message.
const DeletedPlaceholder = "This message was deleted"

// Message is a chat message. Deletion is soft: the row stays, content is replaced.
// Reactions map userId -> emoji, one reaction per user, last write wins.
type Message struct {
	ID             string            `gorm:"primaryKey;type:varchar(36)"`
	ConversationID string            `gorm:"type:varchar(80);index:idx_message_conv_created;not null"`
	SenderID       string            `gorm:"type:varchar(36);not null"`
	SenderUsername string            `gorm:"type:varchar(64)"`
	Content        string            `gorm:"type:text"`
	MediaURL       string            `gorm:"type:text"`
	MessageType    string            `gorm:"type:varchar(16);not null;default:'TEXT'"`
	Status         string            `gorm:"type:varchar(16);not null;default:'SENT'"`
	IsDeleted      bool              `gorm:"not null;default:false"`
	DeletedAt      *time.Time        ``
	Reactions      datatypes.JSONMap `gorm:"type:json"`
	ReplyTo        string            `gorm:"type:varchar(36)"`
	CreatedAt      time.Time         `gorm:"index:idx_message_conv_created"`
}

func (Message) TableName() string { return "messages" }

// StatusRank orders delivery states so upserts never downgrade: a late DELIVERED
// must not overwrite READ.
func StatusRank(status string) int {
	switch status {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}
