package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"chat-service/internal/identity"
	"chat-service/internal/mocks"
	"chat-service/internal/models"
	"chat-service/internal/repositories"
	"chat-service/internal/services"
)

type syncerMock struct {
	mock.Mock
}

func (m *syncerMock) Sync(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	return user, args.Error(0)
}

func newAuthRouter(syncer *syncerMock, every time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(identity.HeaderAuthenticator{}, syncer, every, zerolog.Nop()))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userID")})
	})
	return r
}

func TestAuthMiddlewareRejectsAnonymous(t *testing.T) {
	syncer := new(syncerMock)
	r := newAuthRouter(syncer, time.Minute)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	syncer.AssertNotCalled(t, "Sync", mock.Anything, mock.Anything)
}

func TestAuthMiddlewareThrottlesSync(t *testing.T) {
	syncer := new(syncerMock)
	syncer.On("Sync", mock.Anything, mock.MatchedBy(func(u models.User) bool { return u.ID == "u1" })).Return(nil).Once()
	r := newAuthRouter(syncer, time.Hour)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(identity.HeaderUserID, "u1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"user_id":"u1"}`, rec.Body.String())
	}
	syncer.AssertExpectations(t)
}

func TestAuthMiddlewareFailsWhenUserDirectoryIsDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := new(mocks.UserRepositoryMock)
	users.On("UpsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.ID == "u1" && u.DisplayName == "u1"
	}), mock.Anything).Return(nil, errors.New("connection refused")).Twice()
	svc := services.New(repositories.Store{Users: users})

	r := gin.New()
	r.Use(AuthMiddleware(identity.HeaderAuthenticator{}, svc.Users, time.Hour, zerolog.Nop()))
	r.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(identity.HeaderUserID, "u1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"failed to sync user"}`, rec.Body.String())
	}
	users.AssertExpectations(t)
}
