package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/fanline/internal/api/handler"
	"github.com/d60-Lab/fanline/internal/api/middleware"
)

// New builds the gin engine: public health and websocket endpoints plus the
// identity-gated REST API.
func New(h *handler.Handler, serveWS gin.HandlerFunc, mode string) *gin.Engine {
	gin.SetMode(mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(otelgin.Middleware("fanline"))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	// Socket handshake does its own auth (header or signed token).
	r.GET("/ws", serveWS)

	api := r.Group("/api")
	api.Use(middleware.Identity())
	api.Use(middleware.RateLimit(rate.Limit(50), 100))

	feed := api.Group("/feed")
	{
		feed.POST("/post", h.CreatePost)
		feed.POST("/regenerate/:userId", h.RegenerateFeed)
		feed.POST("/batch-regenerate", h.BatchRegenerate)
		feed.POST("/cache-followers", h.CacheFollowers)
		feed.POST("/cache-following", h.CacheFollowing)
		feed.GET("/:userId", h.GetFeed)
		feed.DELETE("/:userId", h.InvalidateFeed)
	}

	chat := api.Group("/chat")
	{
		chat.GET("/conversations", h.ListConversations)
		chat.POST("/conversations/start", h.StartConversation)
		chat.POST("/conversations/group", h.CreateGroupConversation)
		chat.GET("/conversations/:id", h.GetConversation)
		chat.DELETE("/conversations/:id", h.DeleteConversation)
		chat.GET("/conversations/:id/messages", h.GetMessages)
		chat.POST("/conversations/:id/messages", h.SendMessage)
		chat.GET("/conversations/:id/search", h.SearchMessages)
		chat.GET("/conversations/:id/media", h.ListMedia)
		chat.POST("/conversations/:id/read", h.MarkAsRead)
		chat.DELETE("/messages/:id", h.DeleteMessage)
		chat.POST("/messages/:id/reactions", h.AddReaction)
		chat.DELETE("/messages/:id/reactions", h.RemoveReaction)
		chat.GET("/unread-count", h.UnreadCount)
		chat.GET("/chatable-users", h.ChatableUsers)
	}

	relations := api.Group("/relations")
	{
		relations.POST("/follow", h.Follow)
		relations.POST("/unfollow", h.Unfollow)
	}

	return r
}
