package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-service/internal/models"
	"chat-service/internal/research"
)

type scriptedAgent struct {
	events   []research.Event
	userID   string
	question string
}

func (a *scriptedAgent) Stream(ctx context.Context, userID, question string) <-chan research.Event {
	a.userID, a.question = userID, question
	ch := make(chan research.Event)
	go func() {
		defer close(ch)
		for _, ev := range a.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

type staticTranscripts struct {
	entries []models.TranscriptEntry
	limit   int
}

func (s *staticTranscripts) ListEntries(_ context.Context, _ string, limit int) ([]models.TranscriptEntry, error) {
	s.limit = limit
	return s.entries, nil
}

func newResearchRouter(agent Asker, transcripts TranscriptLister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewResearchHandler(agent, transcripts)
	r := gin.New()
	r.Use(asUser)
	r.POST("/research/ask", h.Ask)
	r.GET("/research/history", h.History)
	return r
}

func TestAskStreamsEventsThenDone(t *testing.T) {
	agent := &scriptedAgent{events: []research.Event{
		{Type: research.EventStart, Message: "Processing your question...", Route: research.RouteDirect},
		{Type: research.EventAnalysis, Message: "Thinking..."},
		{Type: research.EventContent, Content: "42"},
		{Type: research.EventComplete, Response: "42", Route: research.RouteDirect},
	}}
	r := newResearchRouter(agent, &staticTranscripts{})

	req := httptest.NewRequest(http.MethodPost, "/research/ask", strings.NewReader(`{"message":"  meaning of life  "}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "u1", agent.userID)
	assert.Equal(t, "meaning of life", agent.question)

	frames := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 5)
	assert.JSONEq(t, `{"type":"start","message":"Processing your question...","route":"direct"}`, strings.TrimPrefix(frames[0], "data: "))
	assert.JSONEq(t, `{"type":"content","content":"42"}`, strings.TrimPrefix(frames[2], "data: "))
	assert.Equal(t, "data: [DONE]", frames[4])
}

func TestAskRequiresMessage(t *testing.T) {
	r := newResearchRouter(&scriptedAgent{}, &staticTranscripts{})

	for _, body := range []string{`{}`, `{"message":"   "}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/research/ask", strings.NewReader(body))
		req.Header.Set("X-User-ID", "u1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestHistoryClampsLimit(t *testing.T) {
	transcripts := &staticTranscripts{entries: []models.TranscriptEntry{{ID: "t1", Role: models.TranscriptRoleUser, Content: "q"}}}
	r := newResearchRouter(&scriptedAgent{}, transcripts)

	req := httptest.NewRequest(http.MethodGet, "/research/history?limit=5000", nil)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxHistoryLimit, transcripts.limit)
	assert.Len(t, decode[map[string][]models.TranscriptEntry](t, rec)["entries"], 1)
}
