package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chat-service/internal/models"
	"chat-service/internal/observability"
	"chat-service/internal/services"
	"chat-service/internal/telemetry"
	"chat-service/internal/ws"
)

// ConversationHandler manages conversation, message and read-receipt endpoints.
type ConversationHandler struct {
	conversations *services.ConversationService
	receipts      *services.ReceiptService
	hub           *ws.Hub
	audit         *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(svc *services.Services, hub *ws.Hub, audit *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{
		conversations: svc.Conversations,
		receipts:      svc.Receipts,
		hub:           hub,
		audit:         audit,
	}
}

// CreateConversation starts a conversation between the caller and participants.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req struct {
		ParticipantIDs []string `json:"participant_ids" binding:"required"`
		InitialMessage string   `json:"initial_message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.conversations.Create(c.Request.Context(), userIDFromContext(c), req.ParticipantIDs, req.InitialMessage)
	if err != nil {
		writeError(c, err)
		return
	}

	observability.IncMessageAppended("initial")
	emitAudit(c, h.audit, "conversation.create", conv.ID, "conversation created")
	c.JSON(http.StatusCreated, conv)
}

// ListConversations returns the caller's conversations, most recent first.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}
	offset, ok := intQuery(c, "offset", 0)
	if !ok {
		return
	}

	convs, err := h.conversations.ListForUser(c.Request.Context(), userIDFromContext(c), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetConversation returns a single conversation visible to the caller.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conv, err := h.conversations.Get(c.Request.Context(), c.Param("conversation_id"), userIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// GetMessages returns the latest page of messages with the caller's read status.
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	page, ok := intQuery(c, "page", 1)
	if !ok {
		return
	}

	msgs, err := h.conversations.Messages(c.Request.Context(), c.Param("conversation_id"), userIDFromContext(c), page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "page": max(page, 1)})
}

// PostMessage appends a message and pushes it to the conversation room.
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	var req struct {
		Body       string             `json:"body"`
		Attachment *models.Attachment `json:"attachment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.conversations.AppendMessage(c.Request.Context(), c.Param("conversation_id"), userIDFromContext(c), req.Body, req.Attachment)
	if err != nil {
		writeError(c, err)
		return
	}

	kind := "text"
	if msg.Attachment != nil {
		kind = string(msg.Attachment.Kind)
	}
	observability.IncMessageAppended(kind)
	h.hub.BroadcastMessage(msg)
	c.JSON(http.StatusCreated, msg)
}

// MarkAsRead acknowledges every message in the conversation for the caller.
func (h *ConversationHandler) MarkAsRead(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	userID := userIDFromContext(c)

	n, err := h.receipts.MarkAsRead(c.Request.Context(), conversationID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if n > 0 {
		observability.AddReadReceipts(n)
		h.hub.BroadcastRead(conversationID, userID, n, time.Now().UTC())
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": n})
}

// UnreadCount returns the caller's unread count for one conversation.
func (h *ConversationHandler) UnreadCount(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	n, err := h.receipts.UnreadCount(c.Request.Context(), conversationID, userIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conversationID, "unread_count": n})
}

// UnreadCounts returns unread counts for all of the caller's conversations.
func (h *ConversationHandler) UnreadCounts(c *gin.Context) {
	counts, err := h.receipts.UnreadCounts(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_counts": counts})
}

func intQuery(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return v, true
}
