package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-service/internal/telemetry"
	"chat-service/internal/ws"
)

// RegisterDebugRoutes wires operator endpoints for checking the audit
// pipeline and websocket rooms. They are only mounted when enabled.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, hub *ws.Hub, enabled bool) {
	if !enabled {
		return
	}

	router.POST("/debug/audit", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		text := c.DefaultQuery("text", "audit test")
		emitAudit(c, emitter, "debug.audit_test", c.Query("conversation_id"), text)
		c.JSON(http.StatusAccepted, gin.H{"request_id": requestIDFromContext(c)})
	})

	router.GET("/debug/rooms/:conversation_id", func(c *gin.Context) {
		conversationID := c.Param("conversation_id")
		c.JSON(http.StatusOK, gin.H{
			"conversation_id": conversationID,
			"connections":     hub.RoomSize(conversationID),
		})
	})
}
