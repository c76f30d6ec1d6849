package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/d60-Lab/fanline/internal/model"
	"github.com/d60-Lab/fanline/internal/repository"
)

var (
	ErrNotFound       = repository.ErrNotFound
	ErrNotAuthor      = errors.New("only the sender may delete a message")
	ErrNotParticipant = errors.New("user is not a participant of this conversation")
)

// SendMessageInput carries everything needed to persist one message.
type SendMessageInput struct {
	ConversationID string
	SenderID       string
	SenderUsername string
	Content        string
	MessageType    string
	MediaURL       string
	ReplyTo        string
}

// ConversationSummary is a conversation plus the caller's badge value.
type ConversationSummary struct {
	*model.Conversation
	UnreadCount int64 `json:"unreadCount"`
}

// ChatService owns conversation and message state: idempotent conversation
// ensure, message lifecycle, reactions, soft delete, unread counters and
// per-recipient read receipts.
type ChatService struct {
	convs  repository.ConversationRepository
	msgs   repository.MessageRepository
	unread repository.UnreadRepository
	reads  repository.ReadStatusRepository
	best   *BestEffort
}

func NewChatService(
	convs repository.ConversationRepository,
	msgs repository.MessageRepository,
	unread repository.UnreadRepository,
	reads repository.ReadStatusRepository,
	best *BestEffort,
) *ChatService {
	return &ChatService{convs: convs, msgs: msgs, unread: unread, reads: reads, best: best}
}

// GetOrCreateConversation resolves the deterministic 1:1 conversation for the
// pair, creating it (plus zero unread rows for both sides) on first contact.
// Both call orders converge on the same row.
func (s *ChatService) GetOrCreateConversation(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	id := model.ConversationIDFor(userA, userB)
	if conv, err := s.convs.Get(ctx, id); err == nil {
		return conv, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	conv := &model.Conversation{
		ConversationID: id,
		ChatType:       model.ChatTypeSingle,
		Participants:   model.ParticipantsJSON([]string{userA, userB}),
	}
	if err := s.convs.Ensure(ctx, conv, []string{userA, userB}); err != nil {
		return nil, err
	}
	// re-read: a concurrent first contact may have won the insert
	return s.convs.Get(ctx, id)
}

// CreateGroupConversation opens a group chat with an opaque id.
func (s *ChatService) CreateGroupConversation(ctx context.Context, participantIDs []string) (*model.Conversation, error) {
	conv := &model.Conversation{
		ConversationID: uuid.New().String(),
		ChatType:       model.ChatTypeGroup,
		Participants:   model.ParticipantsJSON(participantIDs),
	}
	if err := s.convs.Ensure(ctx, conv, participantIDs); err != nil {
		return nil, err
	}
	return s.convs.Get(ctx, conv.ConversationID)
}

func (s *ChatService) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	return s.convs.Get(ctx, conversationID)
}

// ListConversations returns the user's conversations, most recently active
// first, each with its unread badge.
func (s *ChatService) ListConversations(ctx context.Context, userID string, limit int) ([]ConversationSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	convs, err := s.convs.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := ConversationSummary{Conversation: conv}
		if row, err := s.unread.Get(ctx, conv.ConversationID, userID); err == nil {
			summary.UnreadCount = row.Count
		}
		out = append(out, summary)
	}
	return out, nil
}

// SendMessage persists the message with status SENT, updates the conversation's
// lastMessage snapshot and bumps every recipient's unread counter. The persisted
// message is returned for broadcast; counter updates are best effort.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*model.Message, error) {
	conv, err := s.convs.Get(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(in.SenderID) {
		return nil, ErrNotParticipant
	}

	msgType := in.MessageType
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	msg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		SenderUsername: in.SenderUsername,
		Content:        in.Content,
		MediaURL:       in.MediaURL,
		MessageType:    msgType,
		Status:         model.StatusSent,
		Reactions:      datatypes.JSONMap{},
		ReplyTo:        in.ReplyTo,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.msgs.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.best.Do(ctx, "update last message", func(ctx context.Context) error {
		return s.convs.UpdateLastMessage(ctx, in.ConversationID, in.Content, in.SenderID, msg.CreatedAt)
	})
	for _, uid := range conv.ParticipantIDs() {
		if uid == in.SenderID {
			continue
		}
		recipient := uid
		s.best.Do(ctx, "increment unread", func(ctx context.Context) error {
			return s.unread.Increment(ctx, in.ConversationID, recipient)
		})
	}
	return msg, nil
}

func (s *ChatService) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	return s.msgs.Get(ctx, messageID)
}

// LoadMessages pages backwards from `before` (zero value = newest) and returns
// chronological order.
func (s *ChatService) LoadMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.msgs.ListBefore(ctx, conversationID, before, limit)
}

// DeleteMessage soft-deletes: author only, content replaced with a fixed
// placeholder, row kept.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, requesterID string) (*model.Message, error) {
	msg, err := s.msgs.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, ErrNotAuthor
	}
	if err := s.msgs.SoftDelete(ctx, messageID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.msgs.Get(ctx, messageID)
}

// AddReaction sets the user's reaction, replacing any previous one (last write
// wins, one reaction per user per message). Deleted messages still accept
// reactions, matching the historical behaviour.
func (s *ChatService) AddReaction(ctx context.Context, messageID, userID, emoji string) (*model.Message, error) {
	msg, err := s.msgs.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	reactions := map[string]interface{}(msg.Reactions)
	if reactions == nil {
		reactions = map[string]interface{}{}
	}
	reactions[userID] = emoji
	if err := s.msgs.SetReactions(ctx, messageID, reactions); err != nil {
		return nil, err
	}
	msg.Reactions = reactions
	return msg, nil
}

func (s *ChatService) RemoveReaction(ctx context.Context, messageID, userID string) (*model.Message, error) {
	msg, err := s.msgs.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	reactions := map[string]interface{}(msg.Reactions)
	if reactions == nil {
		reactions = map[string]interface{}{}
	}
	delete(reactions, userID)
	if err := s.msgs.SetReactions(ctx, messageID, reactions); err != nil {
		return nil, err
	}
	msg.Reactions = reactions
	return msg, nil
}

// MarkAsRead resets the caller's unread counter, stamps lastReadAt and upserts a
// READ receipt for every not-deleted message from other senders. It returns the
// ids of messages whose receipt actually advanced. The scan is O(messages in
// conversation).
func (s *ChatService) MarkAsRead(ctx context.Context, conversationID, userID string) ([]string, error) {
	now := time.Now().UTC()
	if err := s.unread.Reset(ctx, conversationID, userID, now); err != nil {
		return nil, err
	}
	msgs, err := s.msgs.ListActiveFromOthers(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	var readIDs []string
	for _, msg := range msgs {
		advanced, err := s.reads.Upsert(ctx, msg.ID, userID, model.StatusRead, now)
		if err != nil {
			return nil, err
		}
		if !advanced {
			continue
		}
		readIDs = append(readIDs, msg.ID)
		if model.StatusRank(model.StatusRead) > model.StatusRank(msg.Status) {
			s.best.Do(ctx, "promote message status", func(ctx context.Context) error {
				return s.msgs.SetStatus(ctx, msg.ID, model.StatusRead)
			})
		}
	}
	return readIDs, nil
}

// UpdateMessageStatus records a recipient-side delivery transition. Downgrades
// are refused: SENT -> DELIVERED -> READ is monotonic per recipient.
func (s *ChatService) UpdateMessageStatus(ctx context.Context, messageID, userID, status string) (*model.Message, bool, error) {
	if model.StatusRank(status) == 0 {
		return nil, false, errors.New("invalid message status: " + status)
	}
	msg, err := s.msgs.Get(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	advanced, err := s.reads.Upsert(ctx, messageID, userID, status, time.Now().UTC())
	if err != nil {
		return nil, false, err
	}
	if advanced && model.StatusRank(status) > model.StatusRank(msg.Status) {
		s.best.Do(ctx, "promote message status", func(ctx context.Context) error {
			return s.msgs.SetStatus(ctx, messageID, status)
		})
	}
	return msg, advanced, nil
}

func (s *ChatService) UnreadFor(ctx context.Context, conversationID, userID string) (int64, error) {
	row, err := s.unread.Get(ctx, conversationID, userID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Count, nil
}

func (s *ChatService) TotalUnread(ctx context.Context, userID string) (int64, error) {
	return s.unread.SumByUser(ctx, userID)
}

// DeleteConversation hides the conversation for one participant: its messages
// are soft-deleted and the caller's badge resets. The row itself survives for
// the other side.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}
	if err := s.msgs.SoftDeleteConversation(ctx, conversationID, time.Now().UTC()); err != nil {
		return err
	}
	_, err = s.MarkAsRead(ctx, conversationID, userID)
	return err
}

// SearchMessages / ListMedia are conversation-scoped lookups over live messages.
func (s *ChatService) SearchMessages(ctx context.Context, conversationID, query string, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.msgs.Search(ctx, conversationID, query, limit)
}

func (s *ChatService) ListMedia(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.msgs.ListMedia(ctx, conversationID, limit)
}
