package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/fanline/internal/api/middleware"
	"github.com/d60-Lab/fanline/internal/model"
	"github.com/d60-Lab/fanline/internal/service"
	"github.com/d60-Lab/fanline/internal/ws"
	"github.com/d60-Lab/fanline/pkg/response"
)

func (h *Handler) chatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, service.ErrNotParticipant):
		response.Forbidden(c, "not a participant of this conversation")
	case errors.Is(err, service.ErrNotAuthor):
		response.Forbidden(c, "only the author can delete a message")
	default:
		response.InternalError(c, err)
	}
}

// ListConversations returns the caller's conversations with unread badges.
// @Summary List conversations
// @Tags chat
// @Param limit query int false "max conversations" default(50)
// @Success 200 {object} response.Response
// @Router /api/chat/conversations [get]
func (h *Handler) ListConversations(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	convs, err := h.chat.ListConversations(c.Request.Context(), ident.UserID, limit)
	if err != nil {
		h.chatError(c, err)
		return
	}
	response.Success(c, gin.H{"conversations": convs})
}

type startConversationRequest struct {
	TargetUserID string `json:"targetUserId" binding:"required"`
}

// StartConversation opens (or returns) the 1:1 conversation with a mutual follow.
// @Summary Start a conversation
// @Tags chat
// @Accept json
// @Param request body startConversationRequest true "target user"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/chat/conversations/start [post]
func (h *Handler) StartConversation(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ok, err := h.relService.CanChat(c.Request.Context(), ident.UserID, req.TargetUserID)
	if err != nil {
		h.chatError(c, err)
		return
	}
	if !ok {
		response.Forbidden(c, "users must follow each other to chat")
		return
	}
	conv, err := h.chat.GetOrCreateConversation(c.Request.Context(), ident.UserID, req.TargetUserID)
	if err != nil {
		h.chatError(c, err)
		return
	}
	response.Success(c, gin.H{"conversation": conv})
}

type groupConversationRequest struct {
	ParticipantIDs []string `json:"participantIds" binding:"required"`
}

// CreateGroupConversation opens a group chat with the caller and the given users.
// @Summary Create a group conversation
// @Tags chat
// @Accept json
// @Param request body groupConversationRequest true "participants"
// @Success 200 {object} response.Response
// @Router /api/chat/conversations/group [post]
func (h *Handler) CreateGroupConversation(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	var req groupConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	participants := req.ParticipantIDs
	if !containsID(participants, ident.UserID) {
		participants = append(participants, ident.UserID)
	}
	if len(participants) < 3 {
		response.BadRequest(c, "a group conversation needs at least three participants")
		return
	}
	conv, err := h.chat.CreateGroupConversation(c.Request.Context(), participants)
	if err != nil {
		h.chatError(c, err)
		return
	}
	for _, uid := range conv.ParticipantIDs() {
		if uid == ident.UserID {
			continue
		}
		h.broadcaster.ToUser(c.Request.Context(), uid, ws.EventConversationStarted, gin.H{"conversation": conv})
	}
	response.Success(c, gin.H{"conversation": conv})
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// GetConversation returns one conversation the caller participates in.
// @Summary Get a conversation
// @Tags chat
// @Param id path string true "conversation id"
// @Success 200 {object} response.Response
// @Router /api/chat/conversations/{id} [get]
func (h *Handler) GetConversation(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	conv, err := h.chat.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.chatError(c, err)
		return
	}
	if !conv.HasParticipant(ident.UserID) {
		response.Forbidden(c, "not a participant of this conversation")
		return
	}
	response.Success(c, gin.H{"conversation": conv})
}

// DeleteConversation hides the conversation for the caller.
// @Summary Delete a conversation
// @Tags chat
// @Param id path string true "conversation id"
// @Success 200 {object} response.Response
// @Router /api/chat/conversations/{id} [delete]
func (h *Handler) DeleteConversation(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	if err := h.chat.DeleteConversation(c.Request.Context(), c.Param("id"), ident.UserID); err != nil {
		h.chatError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// GetMessages pages backwards through a conversation's history.
// @Summary Load messages
// @Tags chat
// @Param id path string true "conversation id"
// @Param before query string false "RFC3339 cursor"
// @Param limit query int false "page size" default(50)
// @Success 200 {object} response.Response
// @Router /api/chat/conversations/{id}/messages [get]
func (h *Handler) GetMessages(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	conversationID := c.Param("id")
	conv, err := h.chat.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		h.chatError(c, err)
		return
	}
	if !conv.HasParticipant(ident.UserID) {
		response.Forbidden(c, "not a participant of this conversation")
		return
	}
	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "before must be RFC3339")
			return
		}
		before = &t
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	msgs, err := h.chat.LoadMessages(c.Request.Context(), conversationID, before, limit)
	if err != nil {
		h.chatError(c, err)
		return
	}
	response.Success(c, gin.H{"messages": msgs})
}

type sendMessageRequest struct {
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
	MediaURL    string `json:"mediaUrl"`
	ReplyTo     string `json:"replyTo"`
}

// SendMessage posts a message over REST and pushes it to connected sockets.
// @Summary Send a message
// @Tags chat
// @Accept json
// @Param id path string true "conversation id"
// @Param request body sendMessageRequest true "message body"
// @Success 200 {object} response.Response
// @Router /api/chat/conversations/{id}/messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Content == "" && req.MediaURL == "" {
		response.BadRequest(c, "message content is required")
		return
	}
	conversationID := c.Param("id")
	msg, err := h.chat.SendMessage(c.Request.Context(), service.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       ident.UserID,
		SenderUsername: ident.Username,
		Content:        req.Content,
		MessageType:    req.MessageType,
		MediaURL:       req.MediaURL,
		ReplyTo:        req.ReplyTo,
	})
	if err != nil {
		h.chatError(c, err)
		return
	}
	h.pushNewMessage(c.Request.Context(), conversationID, ident.UserID, msg)
	response.Success(c, gin.H{"message": msg})
}

// pushNewMessage mirrors the socket send_message delivery for REST writes.
func (h *Handler) pushNewMessage(ctx context.Context, conversationID, senderID string, msg *model.Message) {
	h.broadcaster.ToRoom(ctx, conversationID, ws.EventNewMessage, gin.H{"message": msg})
	conv, err := h.chat.GetConversation(ctx, conversationID)
	if err != nil {
		return
	}
	for _, uid := range conv.ParticipantIDs() {
		if uid == senderID {
			continue
		}
		unread, _ := h.chat.UnreadFor(ctx, conversationID, uid)
		h.broadcaster.ToUser(ctx, uid, ws.EventNewMessageNotification, gin.H{
			"conversationId": conversationID,
			"message":        msg,
			"unreadCount":    unread,
		})
	}
}

// SearchMessages runs a substring search over live messages.
// @Summary Search messages
// @Tags chat
// @Param id path string true "conversation id"
// @Param q query string true "query"
// @Success 200 {object} response.Response
// @Router /api/chat/conversations/{id}/search [get]
func (h *Handler) SearchMessages(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	conversationID := c.Param("id")
	conv, err := h.chat.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		h.chatError(c, err)
		return
	}
	if !conv.HasParticipant(ident.UserID) {
		response.Forbidden(c, "not a participant of this conversation")
		return
	}
	query := c.Query("q")
	if query == "" {
		response.BadRequest(c, "q is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	msgs, err := h.chat.SearchMessages(c.Request.Context(), conversationID, query, limit)
	if err != nil {
		h.chatError(c, err)
		return
	}
	response.Success(c, gin.H{"messages": msgs})
}

// ListMedia returns the conversation's image and video messages.
// @Summary List media messages
// @Tags chat
// @Param id path string true "conversation id"
// @Success 200 {object} response.Response
// @Router /api/chat/conversations/{id}/media [get]
func (h *Handler) ListMedia(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	conversationID := c.Param("id")
	conv, err := h.chat.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		h.chatError(c, err)
		return
	}
	if !conv.HasParticipant(ident.UserID) {
		response.Forbidden(c, "not a participant of this conversation")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	msgs, err := h.chat.ListMedia(c.Request.Context(), conversationID, limit)
	if err != nil {
		h.chatError(c, err)
		return
	}
	response.Success(c, gin.H{"media": msgs})
}

// DeleteMessage soft-deletes the caller's own message.
// @Summary Delete a message
// @Tags chat
// @Param id path string true "message id"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/chat/messages/{id} [delete]
func (h *Handler) DeleteMessage(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	msg, err := h.chat.DeleteMessage(c.Request.Context(), c.Param("id"), ident.UserID)
	if err != nil {
		h.chatError(c, err)
		return
	}
	h.broadcaster.ToRoom(c.Request.Context(), msg.ConversationID, ws.EventMessageDeleted, gin.H{
		"messageId":      msg.ID,
		"conversationId": msg.ConversationID,
		"content":        msg.Content,
	})
	response.Success(c, gin.H{"message": msg})
}

type reactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// AddReaction sets the caller's reaction on a message.
// @Summary Add a reaction
// @Tags chat
// @Accept json
// @Param id path string true "message id"
// @Param request body reactionRequest true "emoji"
// @Success 200 {object} response.Response
// @Router /api/chat/messages/{id}/reactions [post]
func (h *Handler) AddReaction(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	msg, err := h.chat.AddReaction(c.Request.Context(), c.Param("id"), ident.UserID, req.Emoji)
	if err != nil {
		h.chatError(c, err)
		return
	}
	h.broadcaster.ToRoom(c.Request.Context(), msg.ConversationID, ws.EventReactionAdded, gin.H{
		"messageId": msg.ID,
		"userId":    ident.UserID,
		"emoji":     req.Emoji,
		"reactions": msg.Reactions,
	})
	response.Success(c, gin.H{"reactions": msg.Reactions})
}

// RemoveReaction clears the caller's reaction from a message.
// @Summary Remove a reaction
// @Tags chat
// @Param id path string true "message id"
// @Success 200 {object} response.Response
// @Router /api/chat/messages/{id}/reactions [delete]
func (h *Handler) RemoveReaction(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	msg, err := h.chat.RemoveReaction(c.Request.Context(), c.Param("id"), ident.UserID)
	if err != nil {
		h.chatError(c, err)
		return
	}
	h.broadcaster.ToRoom(c.Request.Context(), msg.ConversationID, ws.EventReactionRemoved, gin.H{
		"messageId": msg.ID,
		"userId":    ident.UserID,
		"reactions": msg.Reactions,
	})
	response.Success(c, gin.H{"reactions": msg.Reactions})
}

// MarkAsRead resets the caller's unread badge and stamps read receipts.
// @Summary Mark a conversation read
// @Tags chat
// @Param id path string true "conversation id"
// @Success 200 {object} response.Response
// @Router /api/chat/conversations/{id}/read [post]
func (h *Handler) MarkAsRead(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	conversationID := c.Param("id")
	ids, err := h.chat.MarkAsRead(c.Request.Context(), conversationID, ident.UserID)
	if err != nil {
		h.chatError(c, err)
		return
	}
	h.broadcaster.ToRoom(c.Request.Context(), conversationID, ws.EventMessagesRead, gin.H{
		"conversationId": conversationID,
		"userId":         ident.UserID,
		"messageIds":     ids,
		"readAt":         time.Now().UTC(),
	})
	response.Success(c, gin.H{"read": len(ids)})
}

// UnreadCount returns the caller's total unread messages across conversations.
// @Summary Total unread count
// @Tags chat
// @Success 200 {object} response.Response
// @Router /api/chat/unread-count [get]
func (h *Handler) UnreadCount(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	total, err := h.chat.TotalUnread(c.Request.Context(), ident.UserID)
	if err != nil {
		h.chatError(c, err)
		return
	}
	response.Success(c, gin.H{"unreadCount": total})
}

// ChatableUsers lists the ids the caller can open a conversation with.
// @Summary List chatable users (mutual follows)
// @Tags chat
// @Success 200 {object} response.Response
// @Router /api/chat/chatable-users [get]
func (h *Handler) ChatableUsers(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	ids, err := h.relService.ListChatable(c.Request.Context(), ident.UserID)
	if err != nil {
		h.chatError(c, err)
		return
	}
	response.Success(c, gin.H{"users": ids})
}
