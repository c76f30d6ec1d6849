package handler

import (
	"github.com/d60-Lab/fanline/internal/service"
	"github.com/d60-Lab/fanline/internal/ws"
)

// Handler bundles the services behind the REST surface. Realtime push for
// REST-originated chat mutations goes through the broadcaster so socket clients
// stay in sync regardless of which transport performed the write.
type Handler struct {
	feed        *service.FeedService
	chat        *service.ChatService
	relService  service.RelationshipService
	broadcaster ws.Broadcaster
}

func New(feed *service.FeedService, chat *service.ChatService, rel service.RelationshipService, b ws.Broadcaster) *Handler {
	return &Handler{feed: feed, chat: chat, relService: rel, broadcaster: b}
}
