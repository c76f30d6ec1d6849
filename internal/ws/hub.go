package ws

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/fanline/pkg/logger"
)

const (
	roomChannelPrefix = "chat:room:"
	userChannelPrefix = "chat:user:"
)

// Broadcaster lets any layer (socket handlers, REST controllers) emit realtime
// events without knowing where the target sockets live. Injected everywhere at
// startup; there is no package-level instance.
type Broadcaster interface {
	ToRoom(ctx context.Context, room, event string, data any)
	ToUser(ctx context.Context, userID, event string, data any)
}

// envelope is what travels over the cluster pub/sub channel. Origin carries the
// emitting socket id so room broadcasts can exclude the sender.
type envelope struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	Origin string          `json:"origin,omitempty"`
}

type roomOp struct {
	client *Client
	room   string
}

// Hub tracks the sockets connected to this instance and bridges them to the
// rest of the fleet over redis pub/sub: every emit is published, every instance
// delivers to whichever of the target's sockets it holds. No instance ever
// calls another directly.
type Hub struct {
	rdb *redis.Client

	clients    map[string]map[*Client]bool // userID -> local sockets
	rooms      map[string]map[*Client]bool // room -> local sockets
	register   chan *Client
	unregister chan *Client
	join       chan roomOp
	leave      chan roomOp
	inbound    chan *redis.Message
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		rdb:        rdb,
		clients:    make(map[string]map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan roomOp),
		leave:      make(chan roomOp),
		inbound:    make(chan *redis.Message, 256),
	}
}

// Run subscribes to the cluster channels and processes hub ops until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	pubsub := h.rdb.PSubscribe(ctx, roomChannelPrefix+"*", userChannelPrefix+"*")
	defer pubsub.Close()
	go func() {
		for msg := range pubsub.Channel() {
			select {
			case h.inbound <- msg:
			default:
				logger.Warn("hub inbound queue full, dropping", zap.String("channel", msg.Channel))
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			if h.clients[c.userID] == nil {
				h.clients[c.userID] = make(map[*Client]bool)
			}
			h.clients[c.userID][c] = true
			logger.Info("socket connected", zap.String("user", c.userID), zap.String("socket", c.id))
		case c := <-h.unregister:
			h.dropClient(c)
		case op := <-h.join:
			if h.rooms[op.room] == nil {
				h.rooms[op.room] = make(map[*Client]bool)
			}
			h.rooms[op.room][op.client] = true
			op.client.markJoined(op.room)
		case op := <-h.leave:
			h.removeFromRoom(op.client, op.room)
		case msg := <-h.inbound:
			h.deliver(msg)
		}
	}
}

func (h *Hub) dropClient(c *Client) {
	if conns, ok := h.clients[c.userID]; ok {
		if conns[c] {
			delete(conns, c)
			c.closeSend()
		}
		if len(conns) == 0 {
			delete(h.clients, c.userID)
		}
	}
	for _, room := range c.joinedRooms() {
		h.removeFromRoom(c, room)
	}
	logger.Info("socket disconnected", zap.String("user", c.userID), zap.String("socket", c.id))
}

func (h *Hub) removeFromRoom(c *Client, room string) {
	c.markLeft(room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// deliver fans one pub/sub message out to the local sockets it concerns.
func (h *Hub) deliver(msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		logger.Warn("undecodable pubsub payload", zap.String("channel", msg.Channel), zap.Error(err))
		return
	}
	payload, err := json.Marshal(map[string]any{"event": env.Event, "data": env.Data})
	if err != nil {
		return
	}

	switch {
	case strings.HasPrefix(msg.Channel, roomChannelPrefix):
		room := strings.TrimPrefix(msg.Channel, roomChannelPrefix)
		for c := range h.rooms[room] {
			if env.Origin != "" && c.id == env.Origin {
				continue
			}
			h.send(c, payload)
		}
	case strings.HasPrefix(msg.Channel, userChannelPrefix):
		userID := strings.TrimPrefix(msg.Channel, userChannelPrefix)
		for c := range h.clients[userID] {
			h.send(c, payload)
		}
	}
}

func (h *Hub) send(c *Client, payload []byte) {
	if !c.trySend(payload) {
		// slow consumer: drop the socket, the client will reconnect
		h.dropClient(c)
	}
}

func (h *Hub) publish(ctx context.Context, channel, event string, data any, origin string) {
	raw, err := json.Marshal(data)
	if err != nil {
		logger.Warn("unencodable broadcast payload", zap.String("event", event), zap.Error(err))
		return
	}
	env := envelope{Event: event, Data: raw, Origin: origin}
	payload, _ := json.Marshal(env)
	if err := h.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		logger.Warn("broadcast publish failed", zap.String("channel", channel), zap.Error(err))
	}
}

// ToRoom emits to every socket in the room, fleet-wide.
func (h *Hub) ToRoom(ctx context.Context, room, event string, data any) {
	h.publish(ctx, roomChannelPrefix+room, event, data, "")
}

// ToUser emits to the user's personal channel: every socket of that user on any
// instance, independent of which room is active.
func (h *Hub) ToUser(ctx context.Context, userID, event string, data any) {
	h.publish(ctx, userChannelPrefix+userID, event, data, "")
}

// toRoomExcept behaves like ToRoom but skips the originating socket.
func (h *Hub) toRoomExcept(ctx context.Context, room, event string, data any, originSocket string) {
	h.publish(ctx, roomChannelPrefix+room, event, data, originSocket)
}

// JoinRoom / LeaveRoom move a local socket in or out of a room and mirror the
// membership into the shared room set.
func (h *Hub) JoinRoom(ctx context.Context, c *Client, room string) {
	h.join <- roomOp{client: c, room: room}
	if err := h.rdb.SAdd(ctx, "room:"+room+":users", c.userID).Err(); err != nil {
		logger.Warn("room membership mirror failed", zap.String("room", room), zap.Error(err))
	}
}

func (h *Hub) LeaveRoom(ctx context.Context, c *Client, room string) {
	h.leave <- roomOp{client: c, room: room}
	if err := h.rdb.SRem(ctx, "room:"+room+":users", c.userID).Err(); err != nil {
		logger.Warn("room membership mirror failed", zap.String("room", room), zap.Error(err))
	}
}

func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// RoomUsers reads the cluster-wide membership mirror.
func (h *Hub) RoomUsers(ctx context.Context, room string) ([]string, error) {
	return h.rdb.SMembers(ctx, "room:"+room+":users").Result()
}
