package model

import "time"

// MessageReadStatus tracks per-recipient delivery state for one message.
type MessageReadStatus struct {
	MessageID string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"primaryKey;type:varchar(36)"`
	Status    string    `gorm:"type:varchar(16);not null;default:'SENT'"`
	Timestamp time.Time `gorm:"not null"`
}

func (MessageReadStatus) TableName() string { return "message_read_status" }
