package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// JWTAuthenticator validates RS256 bearer tokens against the provider's JWKS.
type JWTAuthenticator struct {
	keyFunc   jwt.Keyfunc
	issuer    string
	audience  string
	clockSkew time.Duration
	now       func() time.Time
	jwks      *keyfunc.JWKS
}

// JWTOptions configures NewJWTAuthenticator.
type JWTOptions struct {
	JWKSURL         string
	Issuer          string
	Audience        string
	RefreshInterval time.Duration
	ClockSkew       time.Duration
}

// NewJWTAuthenticator fetches the JWKS and keeps it refreshed until ctx ends.
func NewJWTAuthenticator(ctx context.Context, opts JWTOptions, log zerolog.Logger) (*JWTAuthenticator, error) {
	if opts.JWKSURL == "" {
		return nil, errors.New("jwks url is required")
	}
	jwks, err := keyfunc.Get(opts.JWKSURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   opts.RefreshInterval,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Error().Err(err).Str("jwks_url", opts.JWKSURL).Msg("jwks refresh failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	a := newJWTAuthenticator(jwks.Keyfunc, opts.Issuer, opts.Audience, opts.ClockSkew)
	a.jwks = jwks
	return a, nil
}

func newJWTAuthenticator(keyFunc jwt.Keyfunc, issuer, audience string, skew time.Duration) *JWTAuthenticator {
	return &JWTAuthenticator{
		keyFunc:   keyFunc,
		issuer:    issuer,
		audience:  audience,
		clockSkew: skew,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Close stops background JWKS refreshes.
func (a *JWTAuthenticator) Close() {
	if a.jwks != nil {
		a.jwks.EndBackground()
	}
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	raw, err := BearerToken(r)
	if err != nil {
		return Identity{}, err
	}
	return a.Verify(ctx, raw)
}

// Verify parses raw and maps its claims to an Identity.
func (a *JWTAuthenticator) Verify(_ context.Context, raw string) (Identity, error) {
	token, err := a.parser().ParseWithClaims(raw, jwt.MapClaims{}, a.keyFunc)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	return a.identityFromClaims(claims)
}

// parser validates signature method, expiry with leeway, and the configured
// issuer and audience.
func (a *JWTAuthenticator) parser() *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithLeeway(a.clockSkew),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	return jwt.NewParser(opts...)
}

func (a *JWTAuthenticator) identityFromClaims(claims jwt.MapClaims) (Identity, error) {
	sub := claimString(claims["sub"])
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: sub claim missing", ErrInvalidToken)
	}

	name := claimString(claims["name"])
	if name == "" {
		name = claimString(claims["preferred_username"])
	}
	return Identity{
		ExternalID:  sub,
		Email:       claimString(claims["email"]),
		DisplayName: name,
		AvatarURL:   claimString(claims["picture"]),
	}, nil
}

func claimString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return ""
}
