package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/d60-Lab/fanline/internal/auth"
	"github.com/d60-Lab/fanline/internal/service"
	"github.com/d60-Lab/fanline/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The API gateway terminates origins; this service only sees internal
	// traffic.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection and binds it to the authenticated identity.
// Identity comes from the gateway: either the x-user-payload header or a signed
// token query parameter. An unidentified handshake is refused before upgrade.
func ServeWS(hub *Hub, chat *service.ChatService, rel service.RelationshipService, tokenSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, err := auth.FromPayloadHeader(c.GetHeader("x-user-payload"))
		if err != nil {
			if token := c.Query("token"); token != "" {
				ident, err = auth.FromToken(token, tokenSecret)
			}
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			id:       uuid.NewString(),
			hub:      hub,
			conn:     conn,
			send:     make(chan []byte, 64),
			userID:   ident.UserID,
			username: ident.Username,
			joined:   make(map[string]bool),
			chat:     chat,
			rel:      rel,
		}
		hub.Register(client)
		logger.Debug("socket connected",
			zap.String("socket", client.id), zap.String("user", client.userID))
		// The request context dies with the handler; the socket outlives it.
		go client.Serve(context.Background())
	}
}
