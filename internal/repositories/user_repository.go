package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-service/internal/models"
)

// UserRepository abstracts the local user directory.
type UserRepository interface {
	UpsertUser(ctx context.Context, user models.User, at time.Time) (models.User, error)
	GetUsers(ctx context.Context, ids []string) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateProfile(ctx context.Context, id, displayName string, avatarURL *string, at time.Time) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// UpsertUser inserts the profile or refreshes its email. Display name and
// avatar are owned locally once stored; they are only filled when empty.
func (r *UserRepo) UpsertUser(ctx context.Context, user models.User, at time.Time) (models.User, error) {
	var out models.User
	err := r.db.GetContext(ctx, &out, `INSERT INTO users (id, display_name, email, avatar_url, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email,
            display_name = COALESCE(NULLIF(users.display_name, ''), EXCLUDED.display_name),
            avatar_url = COALESCE(users.avatar_url, EXCLUDED.avatar_url),
            updated_at = EXCLUDED.updated_at
        RETURNING id, display_name, email, avatar_url, created_at, updated_at`,
		user.ID, user.DisplayName, user.Email, user.AvatarURL, at)
	return out, err
}

// GetUsers returns the profiles that exist among ids; unknown ids are skipped.
func (r *UserRepo) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT id, display_name, email, avatar_url, created_at, updated_at
        FROM users WHERE id = ANY($1) ORDER BY display_name, id`, pq.Array(ids))
	return users, err
}

// ListUsers returns every known profile ordered by display name.
func (r *UserRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT id, display_name, email, avatar_url, created_at, updated_at
        FROM users ORDER BY display_name, id`)
	return users, err
}

// GetUserByEmail returns the oldest profile registered with email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, display_name, email, avatar_url, created_at, updated_at
        FROM users WHERE email = $1 ORDER BY created_at, id LIMIT 1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// UpdateProfile overwrites the locally owned profile fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, id, displayName string, avatarURL *string, at time.Time) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `UPDATE users SET display_name = $2, avatar_url = $3, updated_at = $4
        WHERE id = $1
        RETURNING id, display_name, email, avatar_url, created_at, updated_at`, id, displayName, avatarURL, at)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}
