package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-service/internal/mocks"
	"chat-service/internal/models"
	"chat-service/internal/repositories"
	"chat-service/internal/services"
	"chat-service/internal/ws"
)

type testAPI struct {
	router *gin.Engine
	store  *repositories.MemoryStore
}

func asUser(c *gin.Context) {
	c.Set("userID", c.GetHeader("X-User-ID"))
	c.Next()
}

func registerConversationRoutes(r gin.IRoutes, svc *services.Services) {
	hub := ws.NewHub(zerolog.Nop())
	conversations := NewConversationHandler(svc, hub, nil)
	invitations := NewInvitationHandler(svc, hub, nil)

	r.POST("/conversations", conversations.CreateConversation)
	r.GET("/conversations", conversations.ListConversations)
	r.GET("/conversations/:conversation_id", conversations.GetConversation)
	r.GET("/conversations/:conversation_id/messages", conversations.GetMessages)
	r.POST("/conversations/:conversation_id/messages", conversations.PostMessage)
	r.POST("/conversations/:conversation_id/read", conversations.MarkAsRead)
	r.GET("/conversations/:conversation_id/unread", conversations.UnreadCount)
	r.GET("/unread-counts", conversations.UnreadCounts)
	r.POST("/conversations/:conversation_id/invitations", invitations.Invite)
	r.POST("/conversations/:conversation_id/invitations/respond", invitations.Respond)
	r.GET("/invitations/pending", invitations.Pending)
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repositories.NewMemoryStore()
	r := gin.New()
	r.Use(asUser)
	registerConversationRoutes(r, services.New(store.Store()))
	return &testAPI{router: r, store: store}
}

func (a *testAPI) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (a *testAPI) createConversation(t *testing.T, creator string, participants ...string) models.Conversation {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/conversations", creator, gin.H{"participant_ids": participants})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Conversation](t, rec)
}

func TestCreateConversation(t *testing.T) {
	api := newTestAPI(t)

	conv := api.createConversation(t, "A", "B")
	assert.ElementsMatch(t, []string{"A", "B"}, conv.ParticipantIDs)
	assert.Equal(t, "A", conv.CreatedBy)
	assert.Equal(t, services.DefaultInitialBody, conv.LastMessageSummary.BodyPreview)

	rec := api.do(t, http.MethodGet, "/conversations/"+conv.ID, "B", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateConversationValidation(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/conversations", "A", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/conversations", "A", gin.H{"participant_ids": []string{"A"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConversationAccess(t *testing.T) {
	api := newTestAPI(t)
	conv := api.createConversation(t, "A", "B")

	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodGet, "/conversations/"+conv.ID, "C", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/conversations/nope", "A", nil).Code)
}

func TestPostMessage(t *testing.T) {
	api := newTestAPI(t)
	conv := api.createConversation(t, "A", "B")

	rec := api.do(t, http.MethodPost, "/conversations/"+conv.ID+"/messages", "B", gin.H{"body": "hi there"})
	require.Equal(t, http.StatusCreated, rec.Code)
	msg := decode[models.Message](t, rec)
	assert.Equal(t, "B", msg.AuthorID)
	assert.Equal(t, conv.ID, msg.ConversationID)

	rec = api.do(t, http.MethodGet, "/conversations/"+conv.ID, "A", nil)
	updated := decode[models.Conversation](t, rec)
	assert.Equal(t, models.MessageSummary{AuthorID: "B", BodyPreview: "hi there"}, updated.LastMessageSummary)
}

func TestPostMessageErrors(t *testing.T) {
	api := newTestAPI(t)
	conv := api.createConversation(t, "A", "B")
	path := "/conversations/" + conv.ID + "/messages"

	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodPost, path, "C", gin.H{"body": "let me in"}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, path, "A", gin.H{"body": "   "}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, path, "A", gin.H{
		"attachment": gin.H{"url": "https://cdn/x.pdf", "kind": "document"},
	}).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodPost, "/conversations/missing/messages", "A", gin.H{"body": "x"}).Code)
}

func TestPostMessageWithAttachmentOnly(t *testing.T) {
	api := newTestAPI(t)
	conv := api.createConversation(t, "A", "B")

	rec := api.do(t, http.MethodPost, "/conversations/"+conv.ID+"/messages", "A", gin.H{
		"attachment": gin.H{"url": "https://cdn/p.png", "kind": "image", "file_name": "p.png"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	updated := decode[models.Conversation](t, api.do(t, http.MethodGet, "/conversations/"+conv.ID, "A", nil))
	assert.Equal(t, models.AttachmentImage.Placeholder(), updated.LastMessageSummary.BodyPreview)
}

func TestReadReceiptFlow(t *testing.T) {
	api := newTestAPI(t)
	conv := api.createConversation(t, "A", "B")
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/conversations/"+conv.ID+"/messages", "A", gin.H{"body": "hello"}).Code)

	counts := decode[map[string]map[string]int](t, api.do(t, http.MethodGet, "/unread-counts", "B", nil))
	assert.Equal(t, 2, counts["unread_counts"][conv.ID])
	counts = decode[map[string]map[string]int](t, api.do(t, http.MethodGet, "/unread-counts", "A", nil))
	assert.Equal(t, 0, counts["unread_counts"][conv.ID])

	rec := api.do(t, http.MethodPost, "/conversations/"+conv.ID+"/read", "B", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[map[string]int](t, rec)["acknowledged"])

	rec = api.do(t, http.MethodPost, "/conversations/"+conv.ID+"/read", "B", nil)
	assert.Equal(t, 0, decode[map[string]int](t, rec)["acknowledged"])

	rec = api.do(t, http.MethodGet, "/conversations/"+conv.ID+"/unread", "B", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, rec)["unread_count"])

	rec = api.do(t, http.MethodGet, "/conversations/"+conv.ID+"/messages", "A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Messages []services.MessageView `json:"messages"`
	}](t, rec)
	require.Len(t, page.Messages, 2)
	for _, m := range page.Messages {
		assert.Equal(t, "Read", m.ReadStatus)
	}

	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodPost, "/conversations/"+conv.ID+"/read", "C", nil).Code)
}

func TestListConversations(t *testing.T) {
	api := newTestAPI(t)
	first := api.createConversation(t, "A", "B")
	second := api.createConversation(t, "A", "C")
	api.createConversation(t, "B", "C")

	rec := api.do(t, http.MethodGet, "/conversations", "A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]models.Conversation](t, rec)["conversations"]
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, []string{list[0].ID, list[1].ID})

	rec = api.do(t, http.MethodGet, "/conversations?limit=1&offset=1", "A", nil)
	assert.Len(t, decode[map[string][]models.Conversation](t, rec)["conversations"], 1)

	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/conversations?limit=abc", "A", nil).Code)
}

func TestListConversationsRepoError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	convRepo := new(mocks.ConversationRepositoryMock)
	svc := services.New(repositories.Store{Conversations: convRepo, Messages: new(mocks.MessageRepositoryMock)})
	r := gin.New()
	r.Use(asUser)
	registerConversationRoutes(r, svc)

	convRepo.On("ListConversationsForUser", mock.Anything, "A", services.DefaultConversationPageSize, 0).
		Return(([]models.Conversation)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.Header.Set("X-User-ID", "A")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
	convRepo.AssertExpectations(t)
}
