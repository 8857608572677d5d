// Package identity turns identity-provider credentials into local profiles.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"chat-service/internal/models"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Identity is what the identity provider tells us about the caller.
type Identity struct {
	ExternalID  string
	Email       string
	DisplayName string
	AvatarURL   string
}

// User converts the identity to the profile record that gets upserted.
func (i Identity) User() models.User {
	u := models.User{ID: i.ExternalID, Email: i.Email, DisplayName: i.DisplayName}
	if i.AvatarURL != "" {
		avatar := i.AvatarURL
		u.AvatarURL = &avatar
	}
	return u
}

// Authenticator resolves the caller of an HTTP request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

// BearerToken extracts the token from an Authorization header. Websocket
// clients cannot set headers, so the access_token query parameter is
// accepted as a fallback.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" {
			return token, nil
		}
		return "", ErrMissingCredentials
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}

// HeaderAuthenticator trusts identity headers set by an upstream proxy.
// Only meant for local development and tests.
type HeaderAuthenticator struct{}

const (
	HeaderUserID     = "X-User-ID"
	HeaderUserEmail  = "X-User-Email"
	HeaderUserName   = "X-User-Name"
	HeaderUserAvatar = "X-User-Avatar"
)

func (HeaderAuthenticator) Authenticate(_ context.Context, r *http.Request) (Identity, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("user_id"))
	}
	if id == "" {
		return Identity{}, ErrMissingCredentials
	}
	return Identity{
		ExternalID:  id,
		Email:       strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
		DisplayName: strings.TrimSpace(r.Header.Get(HeaderUserName)),
		AvatarURL:   strings.TrimSpace(r.Header.Get(HeaderUserAvatar)),
	}, nil
}
