package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-service/internal/telemetry"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) string {
	return c.GetString("userID")
}

func emitAudit(c *gin.Context, emitter *telemetry.AuditEmitter, action, conversationID, text string) {
	emitter.Emit(c.Request.Context(), telemetry.AuditEvent{
		Level:          "INFO",
		Text:           text,
		Action:         action,
		ConversationID: conversationID,
		RequestID:      requestIDFromContext(c),
		UserID:         userIDFromContext(c),
	})
}
