package model

import "time"

// UnreadCount is the authoritative badge value for (conversation, user).
// Maintained eventually, outside any transaction with message creation; never negative.
type UnreadCount struct {
	ConversationID string     `gorm:"primaryKey;type:varchar(80)"`
	UserID         string     `gorm:"primaryKey;type:varchar(36);index:idx_unread_user"`
	Count          int64      `gorm:"not null;default:0"`
	LastReadAt     *time.Time ``
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (UnreadCount) TableName() string { return "unread_counts" }
