package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-service/internal/mocks"
	"chat-service/internal/telemetry"
	"chat-service/internal/ws"
)

func TestDebugRoutesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, ws.NewHub(zerolog.Nop()), false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/rooms/c1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugAuditPublishes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pub := new(mocks.PublisherMock)
	pub.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(ev any) bool {
		env, ok := ev.(telemetry.AuditEnvelope)
		return ok && env.Payload.Action == "debug.audit_test" && env.Payload.ConversationID == "c9"
	}), map[string]string{"x-request-id": "req-7"}).Return(nil).Once()

	r := gin.New()
	RegisterDebugRoutes(r, telemetry.NewAuditEmitter(pub, "audit.chat", "chat-service", "test", zerolog.Nop()), ws.NewHub(zerolog.Nop()), true)

	req := httptest.NewRequest(http.MethodPost, "/debug/audit?conversation_id=c9", nil)
	req.Header.Set("X-Request-ID", "req-7")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "req-7", decode[map[string]string](t, rec)["request_id"])
	pub.AssertExpectations(t)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/rooms/c9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conversation_id":"c9","connections":0}`, rec.Body.String())
}
