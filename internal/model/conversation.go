package model

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const (
	ChatTypeSingle = "SINGLE"
	ChatTypeGroup  = "GROUP"
)

// Conversation is a single or group chat. 1:1 conversations use a deterministic id
// so both first-contact directions converge on the same row; the row is never
// hard-deleted.
type Conversation struct {
	ConversationID string         `gorm:"primaryKey;type:varchar(80)"`
	ChatType       string         `gorm:"type:varchar(16);not null;default:'SINGLE'"`
	Participants   datatypes.JSON `gorm:"type:json"`
	LastMessage    string         `gorm:"type:text"`
	LastMessageBy  string         `gorm:"type:varchar(36)"`
	LastMessageAt  *time.Time     `gorm:"index:idx_conversation_last_message,sort:desc"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Conversation) TableName() string { return "conversations" }

// ParticipantIDs decodes the participants column.
func (c *Conversation) ParticipantIDs() []string {
	var ids []string
	_ = json.Unmarshal(c.Participants, &ids)
	return ids
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs() {
		if id == userID {
			return true
		}
	}
	return false
}

// ParticipantsJSON encodes a sorted participant list for storage.
func ParticipantsJSON(ids []string) datatypes.JSON {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	b, _ := json.Marshal(sorted)
	return datatypes.JSON(b)
}

// ConversationIDFor returns the deterministic 1:1 conversation id: the two
// participant ids sorted and joined by an underscore, so
// ConversationIDFor(a, b) == ConversationIDFor(b, a).
func ConversationIDFor(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}
