package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"chat-service/internal/identity"
	"chat-service/internal/observability"
	"chat-service/internal/services"
)

// DefaultReadDebounce coalesces bursts of "read" frames into one receipt write.
const DefaultReadDebounce = time.Second

const maxFrameBytes = 4096

// MembershipChecker tells whether a user may join a conversation room.
type MembershipChecker interface {
	CheckParticipant(ctx context.Context, conversationID, userID string) error
}

// ReadMarker records read receipts.
type ReadMarker interface {
	MarkAsRead(ctx context.Context, conversationID, userID string) (int, error)
}

// ConversationSocket upgrades participants into a conversation room and
// turns their "read" frames into receipts.
type ConversationSocket struct {
	hub       *Hub
	auth      identity.Authenticator
	members   MembershipChecker
	receipts  ReadMarker
	readDelay time.Duration
	log       zerolog.Logger
}

// NewConversationSocket constructs a ConversationSocket.
func NewConversationSocket(hub *Hub, auth identity.Authenticator, members MembershipChecker, receipts ReadMarker, log zerolog.Logger) *ConversationSocket {
	return &ConversationSocket{
		hub:       hub,
		auth:      auth,
		members:   members,
		receipts:  receipts,
		readDelay: DefaultReadDebounce,
		log:       log.With().Str("component", "ws").Logger(),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the caller, checks participation and upgrades.
func (h *ConversationSocket) Handle(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	ctx, span := otel.Tracer("chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))
	c.Request = c.Request.WithContext(ctx)

	id, err := h.auth.Authenticate(ctx, c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if err := h.members.CheckParticipant(ctx, conversationID, id.ExternalID); err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, services.ErrUnauthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for conversation"})
		default:
			h.log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to verify membership")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	traceID := span.SpanContext().TraceID().String()
	origin := observability.OriginOf(c)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      id.ExternalID,
		DeviceID:    origin.DeviceID,
		IP:          origin.IP,
		RequestID:   origin.RequestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.Join(conversationID, conn, info)

	// The request context ends when the handler returns; the connection outlives it.
	connCtx := context.WithoutCancel(ctx)
	observability.IncWSActive(wsKind)
	observability.IncWSEvent(wsKind, "ws_connect")
	_ = observability.PublishEvent(connCtx, wsRoutingKey, lifecycleEnvelope("ws_connect", conversationID, info, ""),
		observability.BuildHeaders(origin.RequestID, traceID))

	go h.serve(connCtx, conversationID, conn, info)
}

func (h *ConversationSocket) serve(ctx context.Context, conversationID string, conn *websocket.Conn, info ConnInfo) {
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	reads := newDebouncer(h.readDelay, func() { h.markRead(ctx, conversationID, info.UserID) })

	var closeReason string
	defer func() {
		reads.flush()
		h.hub.Leave(conversationID, conn)
		observability.DecWSActive(wsKind)
		observability.IncWSEvent(wsKind, "ws_disconnect")
		_ = observability.PublishEvent(ctx, wsRoutingKey, lifecycleEnvelope("ws_disconnect", conversationID, info, closeReason), headers)
		conn.Close()
	}()

	conn.SetReadLimit(maxFrameBytes)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent(wsKind, "ws_error")
				_ = observability.PublishEvent(ctx, wsRoutingKey, lifecycleEnvelope("ws_error", conversationID, info, closeReason), headers)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type != frameRead {
			observability.IncWSEvent(wsKind, "unknown_frame")
			continue
		}
		reads.trigger()
	}
}

func (h *ConversationSocket) markRead(ctx context.Context, conversationID, userID string) {
	n, err := h.receipts.MarkAsRead(ctx, conversationID, userID)
	if err != nil {
		h.log.Warn().Err(err).Str("conversation_id", conversationID).Str("user_id", userID).Msg("websocket read receipt failed")
		return
	}
	if n == 0 {
		return
	}
	observability.AddReadReceipts(n)
	h.hub.BroadcastRead(conversationID, userID, n, time.Now().UTC())
}

// debouncer runs fn once delay has passed without another trigger.
type debouncer struct {
	delay time.Duration
	fn    func()
	mu    sync.Mutex
	timer *time.Timer
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// flush runs a pending call immediately.
func (d *debouncer) flush() {
	d.mu.Lock()
	pending := d.timer != nil && d.timer.Stop()
	d.timer = nil
	d.mu.Unlock()
	if pending {
		d.fn()
	}
}
