package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/d60-Lab/fanline/internal/service"
	"github.com/d60-Lab/fanline/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 8192
)

// Client is one authenticated socket: the socket/identity binding lives only as
// long as the connection. Authentication happened at the handshake; events are
// trusted to carry this identity from then on.
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	userID   string
	username string

	mu     sync.Mutex
	joined map[string]bool
	closed bool

	chat *service.ChatService
	rel  service.RelationshipService
}

// joined is touched by both the hub goroutine and the read pump.
func (c *Client) markJoined(room string) {
	c.mu.Lock()
	c.joined[room] = true
	c.mu.Unlock()
}

func (c *Client) markLeft(room string) {
	c.mu.Lock()
	delete(c.joined, room)
	c.mu.Unlock()
}

func (c *Client) inRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined[room]
}

// trySend queues a payload without ever blocking the hub. It reports false only
// when the buffer is full; a closed socket swallows the payload silently.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend ends the write pump exactly once.
func (c *Client) closeSend() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

func (c *Client) joinedRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.joined))
	for room := range c.joined {
		rooms = append(rooms, room)
	}
	return rooms
}

// inboundEvent is the client->server frame: {"event": name, "data": {...}}.
type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("socket read error", zap.String("user", c.userID), zap.Error(err))
			}
			return
		}
		var evt inboundEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			c.emitError("invalid event payload")
			continue
		}
		c.dispatch(ctx, &evt)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker((pongWait * 9) / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// emit sends an event to this socket only.
func (c *Client) emit(event string, data any) {
	payload, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		logger.Warn("unencodable emit", zap.String("event", event), zap.Error(err))
		return
	}
	c.trySend(payload)
}

func (c *Client) emitError(message string) {
	c.emit(EventError, map[string]string{"message": message})
}

// Serve runs the pumps; it returns when the connection dies.
func (c *Client) Serve(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}
