package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"chat-service/internal/models"
	"chat-service/internal/repositories"
)

// MaxDisplayNameLength bounds display names in runes.
const MaxDisplayNameLength = 80

// UserService mirrors identity-provider profiles into the local directory.
type UserService struct {
	users repositories.UserRepository
	clock Clock
}

// Sync upserts the profile keyed by its external id.
func (s *UserService) Sync(ctx context.Context, user models.User) (models.User, error) {
	user.ID = strings.TrimSpace(user.ID)
	if user.ID == "" {
		return models.User{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	user.Email = normalizeEmail(user.Email)
	user.DisplayName = strings.TrimSpace(user.DisplayName)
	if user.DisplayName == "" {
		user.DisplayName = displayNameFromEmail(user.Email, user.ID)
	}
	return s.users.UpsertUser(ctx, user, s.clock())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayNameFromEmail(email, fallback string) string {
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return fallback
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.ListUsers(ctx)
}

// Get returns one profile or ErrNotFound.
func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	users, err := s.users.GetUsers(ctx, []string{id})
	if err != nil {
		return models.User{}, err
	}
	if len(users) == 0 {
		return models.User{}, fmt.Errorf("user: %w", ErrNotFound)
	}
	return users[0], nil
}

// ByEmail finds the profile registered with email, ignoring case.
func (s *UserService) ByEmail(ctx context.Context, email string) (models.User, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return models.User{}, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, translate(err)
	}
	return user, nil
}

// UpdateProfile sets the caller's display name and avatar. A nil or blank
// avatar clears it.
func (s *UserService) UpdateProfile(ctx context.Context, id, displayName string, avatarURL *string) (models.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return models.User{}, fmt.Errorf("%w: display name is required", ErrValidation)
	}
	if utf8.RuneCountInString(displayName) > MaxDisplayNameLength {
		return models.User{}, fmt.Errorf("%w: display name exceeds %d characters", ErrValidation, MaxDisplayNameLength)
	}

	var avatar *string
	if avatarURL != nil {
		if raw := strings.TrimSpace(*avatarURL); raw != "" {
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
				return models.User{}, fmt.Errorf("%w: avatar url must be an http(s) url", ErrValidation)
			}
			avatar = &raw
		}
	}

	user, err := s.users.UpdateProfile(ctx, id, displayName, avatar, s.clock())
	if err != nil {
		return models.User{}, translate(err)
	}
	return user, nil
}
