package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"chat-service/internal/identity"
	"chat-service/internal/models"
)

// UserSyncer upserts the caller's profile.
type UserSyncer interface {
	Sync(ctx context.Context, user models.User) (models.User, error)
}

const syncCacheSize = 4096

// AuthMiddleware resolves the caller through the identity provider and keeps
// the local user directory in step. A given user is re-synced at most once
// per syncEvery.
func AuthMiddleware(auth identity.Authenticator, users UserSyncer, syncEvery time.Duration, log zerolog.Logger) gin.HandlerFunc {
	recent, err := lru.New(syncCacheSize)
	if err != nil {
		panic(err)
	}

	return func(c *gin.Context) {
		id, err := auth.Authenticate(c.Request.Context(), c.Request)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, identity.ErrMissingCredentials) {
				msg = "missing authorization"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		now := time.Now()
		if last, ok := recent.Get(id.ExternalID); !ok || now.Sub(last.(time.Time)) >= syncEvery {
			if _, err := users.Sync(c.Request.Context(), id.User()); err != nil {
				log.Error().Err(err).Str("user_id", id.ExternalID).Msg("user sync failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to sync user"})
				return
			}
			recent.Add(id.ExternalID, now)
		}

		c.Set("userID", id.ExternalID)
		c.Set("identity", id)
		c.Next()
	}
}
