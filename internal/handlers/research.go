package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"chat-service/internal/models"
	"chat-service/internal/observability"
	"chat-service/internal/research"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Asker streams a research answer.
type Asker interface {
	Stream(ctx context.Context, userID, question string) <-chan research.Event
}

// TranscriptLister reads a user's research history.
type TranscriptLister interface {
	ListEntries(ctx context.Context, userID string, limit int) ([]models.TranscriptEntry, error)
}

// ResearchHandler exposes the research assistant over server-sent events.
type ResearchHandler struct {
	agent       Asker
	transcripts TranscriptLister
}

func NewResearchHandler(agent Asker, transcripts TranscriptLister) *ResearchHandler {
	return &ResearchHandler{agent: agent, transcripts: transcripts}
}

// Ask streams one "data: <json>" frame per agent event followed by
// "data: [DONE]". The run stops when the client disconnects.
func (h *ResearchHandler) Ask(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	started := time.Now()
	route, outcome := "", "cancelled"
	for ev := range h.agent.Stream(ctx, userIDFromContext(c), strings.TrimSpace(req.Message)) {
		if ev.Route != "" {
			route = string(ev.Route)
		}
		if ev.Type == research.EventComplete {
			outcome = "ok"
			if ev.Error != nil {
				outcome = ev.Error.Type
			}
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Msg("failed to encode research event")
			continue
		}
		if !writeSSE(c, payload) {
			cancel()
			break
		}
	}
	observability.ObserveResearchRun(route, outcome, time.Since(started))

	if c.Request.Context().Err() == nil {
		writeSSE(c, []byte("[DONE]"))
	}
}

func writeSSE(c *gin.Context, data []byte) bool {
	if _, err := c.Writer.Write([]byte("data: ")); err != nil {
		return false
	}
	if _, err := c.Writer.Write(data); err != nil {
		return false
	}
	if _, err := c.Writer.Write([]byte("\n\n")); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}

// History returns the caller's recent research questions and answers.
func (h *ResearchHandler) History(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultHistoryLimit)
	if !ok {
		return
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := h.transcripts.ListEntries(c.Request.Context(), userIDFromContext(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
