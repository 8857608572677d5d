package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"chat-service/internal/services"
)

// writeError maps a service error onto an HTTP status and JSON body.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized), errors.Is(err, services.ErrNotAParticipant):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyParticipant),
		errors.Is(err, services.ErrAlreadyInvited),
		errors.Is(err, services.ErrNoPendingInvitation):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUpstream):
		status = http.StatusBadGateway
	}

	_ = c.Error(err)
	switch status {
	case http.StatusInternalServerError:
		log.Error().Err(err).
			Str("request_id", requestIDFromContext(c)).
			Str("route", c.FullPath()).
			Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
	case http.StatusBadGateway:
		// upstream errors can carry provider details; log them, return the class
		log.Warn().Err(err).
			Str("request_id", requestIDFromContext(c)).
			Str("route", c.FullPath()).
			Msg("upstream failure")
		c.JSON(status, gin.H{"error": services.ErrUpstream.Error()})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}
