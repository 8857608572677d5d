package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-service/internal/services"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(svc *services.Services) *UserHandler {
	return &UserHandler{users: svc.Users}
}

// Me returns the caller's profile.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListUsers returns the user directory.
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// LookupUser finds a profile by the email query parameter.
func (h *UserHandler) LookupUser(c *gin.Context) {
	user, err := h.users.ByEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type updateProfileRequest struct {
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}

// UpdateMe edits the caller's display name and avatar.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), userIDFromContext(c), req.DisplayName, req.AvatarURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
