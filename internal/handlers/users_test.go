package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-service/internal/models"
	"chat-service/internal/repositories"
	"chat-service/internal/services"
)

func newUserAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repositories.NewMemoryStore()
	svc := services.New(store.Store())
	for _, u := range []models.User{{ID: "A", Email: "ann@example.com"}, {ID: "B", Email: "bob@example.com"}} {
		_, err := svc.Users.Sync(context.Background(), u)
		require.NoError(t, err)
	}

	users := NewUserHandler(svc)
	r := gin.New()
	r.Use(asUser)
	r.GET("/me", users.Me)
	r.PATCH("/me", users.UpdateMe)
	r.GET("/users/lookup", users.LookupUser)
	return &testAPI{router: r, store: store}
}

func TestLookupUserByEmail(t *testing.T) {
	api := newUserAPI(t)

	rec := api.do(t, http.MethodGet, "/users/lookup?email=Bob@Example.com", "A", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "B", decode[models.User](t, rec).ID)

	rec = api.do(t, http.MethodGet, "/users/lookup?email=carl@example.com", "A", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/users/lookup", "A", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateMe(t *testing.T) {
	api := newUserAPI(t)

	rec := api.do(t, http.MethodPatch, "/me", "A", gin.H{"display_name": "Ann Lee", "avatar_url": "https://cdn.example.com/a.png"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.User](t, rec)
	assert.Equal(t, "Ann Lee", updated.DisplayName)
	require.NotNil(t, updated.AvatarURL)

	rec = api.do(t, http.MethodGet, "/me", "A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ann Lee", decode[models.User](t, rec).DisplayName)

	rec = api.do(t, http.MethodPatch, "/me", "A", gin.H{"display_name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPatch, "/me", "A", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPatch, "/me", "ghost", gin.H{"display_name": "Ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
