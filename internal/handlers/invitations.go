package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-service/internal/models"
	"chat-service/internal/observability"
	"chat-service/internal/services"
	"chat-service/internal/telemetry"
	"chat-service/internal/ws"
)

// InvitationHandler manages invitation endpoints.
type InvitationHandler struct {
	invitations *services.InvitationService
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewInvitationHandler builds an InvitationHandler.
func NewInvitationHandler(svc *services.Services, hub *ws.Hub, audit *telemetry.AuditEmitter) *InvitationHandler {
	return &InvitationHandler{invitations: svc.Invitations, hub: hub, audit: audit}
}

// Invite asks another user to join the conversation.
func (h *InvitationHandler) Invite(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversationID := c.Param("conversation_id")
	inv, err := h.invitations.Invite(c.Request.Context(), conversationID, userIDFromContext(c), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	observability.IncInvitation("created")
	h.hub.BroadcastInvitation(conversationID, inv.InvitedUser)
	emitAudit(c, h.audit, "invitation.create", conversationID, "invited "+inv.InvitedUser)
	c.JSON(http.StatusCreated, inv)
}

// Respond accepts or rejects the caller's pending invitation.
func (h *InvitationHandler) Respond(c *gin.Context) {
	var req struct {
		Accept *bool `json:"accept" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversationID := c.Param("conversation_id")
	userID := userIDFromContext(c)
	inv, err := h.invitations.Respond(c.Request.Context(), conversationID, userID, *req.Accept)
	if err != nil {
		writeError(c, err)
		return
	}

	observability.IncInvitation(string(inv.Status))
	if inv.Status == models.InvitationAccepted {
		h.hub.BroadcastParticipantJoined(conversationID, userID)
	}
	emitAudit(c, h.audit, "invitation."+string(inv.Status), conversationID, "invitation "+string(inv.Status))
	c.JSON(http.StatusOK, inv)
}

// Pending lists the caller's pending invitations with conversation context.
func (h *InvitationHandler) Pending(c *gin.Context) {
	pending, err := h.invitations.PendingFor(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": pending})
}
