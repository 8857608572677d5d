package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-service/internal/observability"
	"chat-service/internal/storage"
	"chat-service/internal/telemetry"
)

// UploadHandler issues presigned upload URLs for message attachments.
type UploadHandler struct {
	uploader *storage.Uploader
	audit    *telemetry.AuditEmitter
}

func NewUploadHandler(uploader *storage.Uploader, audit *telemetry.AuditEmitter) *UploadHandler {
	return &UploadHandler{uploader: uploader, audit: audit}
}

// Presign validates the file description and returns upload and public URLs.
func (h *UploadHandler) Presign(c *gin.Context) {
	var req storage.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upload, err := h.uploader.Presign(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case errors.Is(err, storage.ErrInvalidRequest),
			errors.Is(err, storage.ErrUnsupportedType),
			errors.Is(err, storage.ErrTooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			writeError(c, err)
		}
		return
	}

	observability.IncUploadPresigned(string(upload.Kind))
	emitAudit(c, h.audit, "upload.presign", "", upload.Key)
	c.JSON(http.StatusOK, upload)
}
