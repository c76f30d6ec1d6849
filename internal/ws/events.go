package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/fanline/internal/model"
	"github.com/d60-Lab/fanline/internal/service"
	"github.com/d60-Lab/fanline/pkg/logger"
)

// Client -> server events.
const (
	EventStartConversation = "start_conversation"
	EventJoinConversation  = "join_conversation"
	EventSendMessage       = "send_message"
	EventMessageDelivered  = "message_delivered"
	EventMarkAsRead        = "mark_as_read"
	EventDeleteMessage     = "delete_message"
	EventAddReaction       = "add_reaction"
	EventRemoveReaction    = "remove_reaction"
	EventTyping            = "typing"
	EventGetConversations  = "get_conversations"
	EventLoadMoreMessages  = "load_more_messages"
)

// Server -> client events.
const (
	EventConversationStarted     = "conversation_started"
	EventMessageHistory          = "message_history"
	EventNewMessage              = "new_message"
	EventNewMessageNotification  = "new_message_notification"
	EventMessageSent             = "message_sent"
	EventMessageStatusUpdate     = "message_status_update"
	EventMessagesRead            = "messages_read"
	EventMessageDeleted          = "message_deleted"
	EventReactionAdded           = "reaction_added"
	EventReactionRemoved         = "reaction_removed"
	EventUserTyping              = "user_typing"
	EventConversationsList       = "conversations_list"
	EventMessagesLoaded          = "messages_loaded"
	EventError                   = "error"
)

func (c *Client) dispatch(ctx context.Context, evt *inboundEvent) {
	switch evt.Event {
	case EventStartConversation:
		c.onStartConversation(ctx, evt.Data)
	case EventJoinConversation:
		c.onJoinConversation(ctx, evt.Data)
	case EventSendMessage:
		c.onSendMessage(ctx, evt.Data)
	case EventMessageDelivered:
		c.onMessageDelivered(ctx, evt.Data)
	case EventMarkAsRead:
		c.onMarkAsRead(ctx, evt.Data)
	case EventDeleteMessage:
		c.onDeleteMessage(ctx, evt.Data)
	case EventAddReaction:
		c.onReaction(ctx, evt.Data, true)
	case EventRemoveReaction:
		c.onReaction(ctx, evt.Data, false)
	case EventTyping:
		c.onTyping(ctx, evt.Data)
	case EventGetConversations:
		c.onGetConversations(ctx)
	case EventLoadMoreMessages:
		c.onLoadMoreMessages(ctx, evt.Data)
	default:
		c.emitError("unknown event: " + evt.Event)
	}
}

func (c *Client) emitServiceError(err error) {
	switch {
	case errors.Is(err, service.ErrNotParticipant):
		c.emitError("not a participant of this conversation")
	case errors.Is(err, service.ErrNotAuthor):
		c.emitError("only the author can delete a message")
	case errors.Is(err, service.ErrNotFound):
		c.emitError("not found")
	default:
		logger.Warn("chat event failed", zap.String("user", c.userID), zap.Error(err))
		c.emitError("internal error")
	}
}

func (c *Client) onStartConversation(ctx context.Context, data json.RawMessage) {
	var req struct {
		TargetUserID string `json:"targetUserId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.TargetUserID == "" {
		c.emitError("targetUserId is required")
		return
	}
	ok, err := c.rel.CanChat(ctx, c.userID, req.TargetUserID)
	if err != nil {
		c.emitServiceError(err)
		return
	}
	if !ok {
		c.emitError("users must follow each other to chat")
		return
	}
	conv, err := c.chat.GetOrCreateConversation(ctx, c.userID, req.TargetUserID)
	if err != nil {
		c.emitServiceError(err)
		return
	}
	c.hub.JoinRoom(ctx, c, conv.ConversationID)
	payload := map[string]any{"conversation": conv}
	c.emit(EventConversationStarted, payload)
	c.hub.ToUser(ctx, req.TargetUserID, EventConversationStarted, payload)
}

func (c *Client) onJoinConversation(ctx context.Context, data json.RawMessage) {
	var req struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		c.emitError("conversationId is required")
		return
	}
	conv, err := c.chat.GetConversation(ctx, req.ConversationID)
	if err != nil {
		c.emitServiceError(err)
		return
	}
	if !conv.HasParticipant(c.userID) {
		c.emitError("not a participant of this conversation")
		return
	}
	c.hub.JoinRoom(ctx, c, conv.ConversationID)
	msgs, err := c.chat.LoadMessages(ctx, conv.ConversationID, nil, 0)
	if err != nil {
		c.emitServiceError(err)
		return
	}
	c.emit(EventMessageHistory, map[string]any{
		"conversationId": conv.ConversationID,
		"messages":       msgs,
	})
}

func (c *Client) onSendMessage(ctx context.Context, data json.RawMessage) {
	var req struct {
		ConversationID string `json:"conversationId"`
		Content        string `json:"content"`
		MessageType    string `json:"messageType"`
		MediaURL       string `json:"mediaUrl"`
		ReplyTo        string `json:"replyTo"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		c.emitError("conversationId is required")
		return
	}
	if req.Content == "" && req.MediaURL == "" {
		c.emitError("message content is required")
		return
	}
	msg, err := c.chat.SendMessage(ctx, service.SendMessageInput{
		ConversationID: req.ConversationID,
		SenderID:       c.userID,
		SenderUsername: c.username,
		Content:        req.Content,
		MessageType:    req.MessageType,
		MediaURL:       req.MediaURL,
		ReplyTo:        req.ReplyTo,
	})
	if err != nil {
		c.emitServiceError(err)
		return
	}
	c.emit(EventMessageSent, map[string]any{"message": msg})
	c.hub.ToRoom(ctx, req.ConversationID, EventNewMessage, map[string]any{"message": msg})

	conv, err := c.chat.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return
	}
	for _, uid := range conv.ParticipantIDs() {
		if uid == c.userID {
			continue
		}
		unread, _ := c.chat.UnreadFor(ctx, req.ConversationID, uid)
		c.hub.ToUser(ctx, uid, EventNewMessageNotification, map[string]any{
			"conversationId": req.ConversationID,
			"message":        msg,
			"unreadCount":    unread,
		})
	}
}

func (c *Client) onMessageDelivered(ctx context.Context, data json.RawMessage) {
	var req struct {
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.MessageID == "" {
		c.emitError("messageId is required")
		return
	}
	msg, advanced, err := c.chat.UpdateMessageStatus(ctx, req.MessageID, c.userID, model.StatusDelivered)
	if err != nil {
		c.emitServiceError(err)
		return
	}
	if !advanced {
		return
	}
	c.hub.ToRoom(ctx, msg.ConversationID, EventMessageStatusUpdate, map[string]any{
		"messageId": msg.ID,
		"userId":    c.userID,
		"status":    model.StatusDelivered,
	})
}

func (c *Client) onMarkAsRead(ctx context.Context, data json.RawMessage) {
	var req struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		c.emitError("conversationId is required")
		return
	}
	ids, err := c.chat.MarkAsRead(ctx, req.ConversationID, c.userID)
	if err != nil {
		c.emitServiceError(err)
		return
	}
	c.hub.ToRoom(ctx, req.ConversationID, EventMessagesRead, map[string]any{
		"conversationId": req.ConversationID,
		"userId":         c.userID,
		"messageIds":     ids,
		"readAt":         time.Now().UTC(),
	})
}

func (c *Client) onDeleteMessage(ctx context.Context, data json.RawMessage) {
	var req struct {
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.MessageID == "" {
		c.emitError("messageId is required")
		return
	}
	msg, err := c.chat.DeleteMessage(ctx, req.MessageID, c.userID)
	if err != nil {
		c.emitServiceError(err)
		return
	}
	c.hub.ToRoom(ctx, msg.ConversationID, EventMessageDeleted, map[string]any{
		"messageId":      msg.ID,
		"conversationId": msg.ConversationID,
		"content":        msg.Content,
	})
}

func (c *Client) onReaction(ctx context.Context, data json.RawMessage, add bool) {
	var req struct {
		MessageID string `json:"messageId"`
		Emoji     string `json:"emoji"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.MessageID == "" {
		c.emitError("messageId is required")
		return
	}
	var (
		msg *model.Message
		err error
		evt string
	)
	if add {
		if req.Emoji == "" {
			c.emitError("emoji is required")
			return
		}
		msg, err = c.chat.AddReaction(ctx, req.MessageID, c.userID, req.Emoji)
		evt = EventReactionAdded
	} else {
		msg, err = c.chat.RemoveReaction(ctx, req.MessageID, c.userID)
		evt = EventReactionRemoved
	}
	if err != nil {
		c.emitServiceError(err)
		return
	}
	c.hub.ToRoom(ctx, msg.ConversationID, evt, map[string]any{
		"messageId": msg.ID,
		"userId":    c.userID,
		"emoji":     req.Emoji,
		"reactions": msg.Reactions,
	})
}

func (c *Client) onTyping(ctx context.Context, data json.RawMessage) {
	var req struct {
		ConversationID string `json:"conversationId"`
		IsTyping       bool   `json:"isTyping"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return
	}
	if !c.inRoom(req.ConversationID) {
		return
	}
	c.hub.toRoomExcept(ctx, req.ConversationID, EventUserTyping, map[string]any{
		"conversationId": req.ConversationID,
		"userId":         c.userID,
		"username":       c.username,
		"isTyping":       req.IsTyping,
	}, c.id)
}

func (c *Client) onGetConversations(ctx context.Context) {
	convs, err := c.chat.ListConversations(ctx, c.userID, 0)
	if err != nil {
		c.emitServiceError(err)
		return
	}
	c.emit(EventConversationsList, map[string]any{"conversations": convs})
}

func (c *Client) onLoadMoreMessages(ctx context.Context, data json.RawMessage) {
	var req struct {
		ConversationID string     `json:"conversationId"`
		Before         *time.Time `json:"before"`
		Limit          int        `json:"limit"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		c.emitError("conversationId is required")
		return
	}
	conv, err := c.chat.GetConversation(ctx, req.ConversationID)
	if err != nil {
		c.emitServiceError(err)
		return
	}
	if !conv.HasParticipant(c.userID) {
		c.emitError("not a participant of this conversation")
		return
	}
	msgs, err := c.chat.LoadMessages(ctx, req.ConversationID, req.Before, req.Limit)
	if err != nil {
		c.emitServiceError(err)
		return
	}
	c.emit(EventMessagesLoaded, map[string]any{
		"conversationId": req.ConversationID,
		"messages":       msgs,
		"hasMore":        len(msgs) > 0,
	})
}
