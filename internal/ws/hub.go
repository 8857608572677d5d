package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chat-service/internal/models"
	"chat-service/internal/observability"
)

const writeWait = 10 * time.Second

type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains one websocket room per conversation.
type Hub struct {
	rooms map[string]map[*websocket.Conn]*client
	mu    sync.RWMutex
	log   zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*websocket.Conn]*client),
		log:   log.With().Str("component", "ws-hub").Logger(),
	}
}

// Join registers a connection in a conversation room.
func (h *Hub) Join(conversationID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*websocket.Conn]*client)
	}
	h.rooms[conversationID][conn] = &client{conn: conn, info: info}
}

// Leave removes a connection from a conversation room.
func (h *Hub) Leave(conversationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[conversationID]; ok {
		delete(clients, conn)
		if len(clients) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// RoomSize returns the number of connections subscribed to a conversation.
func (h *Hub) RoomSize(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// BroadcastMessage sends a newly appended message to the room.
func (h *Hub) BroadcastMessage(msg models.Message) {
	h.Broadcast(models.ConversationEvent{Type: models.EventMessage, ConversationID: msg.ConversationID, Message: &msg})
}

// BroadcastRead tells the room that userID acknowledged count messages.
func (h *Hub) BroadcastRead(conversationID, userID string, count int, at time.Time) {
	h.Broadcast(models.ConversationEvent{Type: models.EventRead, ConversationID: conversationID, UserID: userID, Count: count, At: &at})
}

// BroadcastParticipantJoined announces an accepted invitation.
func (h *Hub) BroadcastParticipantJoined(conversationID, userID string) {
	h.Broadcast(models.ConversationEvent{Type: models.EventParticipantJoined, ConversationID: conversationID, UserID: userID})
}

// BroadcastInvitation announces a new pending invitation for userID to the
// conversation room and to every socket the invitee has open in other rooms.
// Invitees without an open socket learn of it from the pending list.
func (h *Hub) BroadcastInvitation(conversationID, userID string) {
	event := models.ConversationEvent{Type: models.EventInvitation, ConversationID: conversationID, UserID: userID}
	h.mu.RLock()
	targets := h.roomClients(conversationID)
	for room, clients := range h.rooms {
		if room == conversationID {
			continue
		}
		for _, c := range clients {
			if c.info.UserID == userID {
				targets = append(targets, roomClient{room: room, client: c})
			}
		}
	}
	h.mu.RUnlock()
	h.deliver(event, targets)
}

// Broadcast writes event to every connection in its conversation room.
// Connections that fail to accept the write are dropped.
func (h *Hub) Broadcast(event models.ConversationEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", event.ConversationID).Msg("failed to encode websocket event")
		return
	}

	h.mu.RLock()
	targets := h.roomClients(event.ConversationID)
	h.mu.RUnlock()
	h.deliverPayload(event, payload, targets)
}

type roomClient struct {
	room   string
	client *client
}

// roomClients must be called with h.mu held.
func (h *Hub) roomClients(room string) []roomClient {
	out := make([]roomClient, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		out = append(out, roomClient{room: room, client: c})
	}
	return out
}

func (h *Hub) deliver(event models.ConversationEvent, targets []roomClient) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", event.ConversationID).Msg("failed to encode websocket event")
		return
	}
	h.deliverPayload(event, payload, targets)
}

func (h *Hub) deliverPayload(event models.ConversationEvent, payload []byte, targets []roomClient) {
	for _, t := range targets {
		c := t.client
		if err := c.write(payload); err != nil {
			h.log.Warn().Err(err).Str("conversation_id", t.room).Str("conn_id", c.info.ConnID).Msg("websocket write error")
			_ = c.conn.Close()
			h.Leave(t.room, c.conn)
			h.publishWSError(t.room, c.info, err)
		}
	}
	observability.IncWSEvent(wsKind, "broadcast_"+event.Type)
}

func (h *Hub) publishWSError(conversationID string, info ConnInfo, err error) {
	_ = observability.PublishEvent(context.Background(), wsRoutingKey, lifecycleEnvelope("ws_error", conversationID, info, err.Error()),
		observability.BuildHeaders(info.RequestID, info.TraceID))
	observability.IncWSEvent(wsKind, "ws_error")
}

const (
	wsKind       = "conversation"
	wsRoutingKey = "ws_events.conversations"
)

func lifecycleEnvelope(event, conversationID string, info ConnInfo, reason string) observability.EventEnvelope {
	var duration int64
	if event != "ws_connect" {
		duration = info.connectedFor(time.Now()).Milliseconds()
	}
	return observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        wsKind,
				"resource_id": conversationID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}
}
