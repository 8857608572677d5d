package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-service/internal/models"
)

// InvitationRepository persists the invitation state machine.
type InvitationRepository interface {
	CreateInvitation(ctx context.Context, inv models.Invitation) error
	// RespondToInvitation moves the pending invitation for the pair to a
	// terminal state. Accepting also adds the participant.
	RespondToInvitation(ctx context.Context, conversationID string, invitedUser string, accept bool, at time.Time) (models.Invitation, error)
	ListPendingForUser(ctx context.Context, userID string) ([]models.Invitation, error)
}

// InvitationRepo is a sqlx implementation of InvitationRepository.
type InvitationRepo struct {
	db *sqlx.DB
}

// NewInvitationRepo constructs an InvitationRepo.
func NewInvitationRepo(db *sqlx.DB) *InvitationRepo {
	return &InvitationRepo{db: db}
}

const invitationColumns = `id, conversation_id, invited_by, invited_user, status, created_at, responded_at`

// CreateInvitation inserts a pending invitation. The partial unique index
// rejects a second pending row for the same pair.
func (r *InvitationRepo) CreateInvitation(ctx context.Context, inv models.Invitation) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO invitations (`+invitationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inv.ID, inv.ConversationID, inv.InvitedBy, inv.InvitedUser, inv.Status, inv.CreatedAt, inv.RespondedAt)
	if pqCode(err) == pqUniqueViolation {
		return ErrDuplicateInvitation
	}
	return notFoundOnBadID(err)
}

// RespondToInvitation locks the pending row so concurrent responses serialize.
func (r *InvitationRepo) RespondToInvitation(ctx context.Context, conversationID string, invitedUser string, accept bool, at time.Time) (inv models.Invitation, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Invitation{}, err
	}
	defer rollback(tx, &err)

	err = tx.GetContext(ctx, &inv, `SELECT `+invitationColumns+` FROM invitations
        WHERE conversation_id = $1 AND invited_user = $2 AND status = 'pending'
        FOR UPDATE`, conversationID, invitedUser)
	if errors.Is(err, sql.ErrNoRows) || pqCode(err) == pqInvalidText {
		err = ErrNoPendingInvitation
		return models.Invitation{}, err
	}
	if err != nil {
		return models.Invitation{}, err
	}

	inv.Status = models.InvitationRejected
	if accept {
		inv.Status = models.InvitationAccepted
	}
	inv.RespondedAt = &at
	if _, err = tx.ExecContext(ctx, `UPDATE invitations SET status = $2, responded_at = $3 WHERE id = $1`, inv.ID, inv.Status, at); err != nil {
		return models.Invitation{}, err
	}

	if accept {
		if _, err = tx.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id, position, joined_at)
            SELECT $1, $2, COALESCE(MAX(position) + 1, 0), $3 FROM conversation_participants WHERE conversation_id = $1
            ON CONFLICT (conversation_id, user_id) DO NOTHING`, conversationID, invitedUser, at); err != nil {
			return models.Invitation{}, err
		}
		if _, err = tx.ExecContext(ctx, `UPDATE conversations SET updated_at = GREATEST(updated_at, $2) WHERE id = $1`, conversationID, at); err != nil {
			return models.Invitation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Invitation{}, err
	}
	return inv, nil
}

// ListPendingForUser returns the user's pending invitations, newest first.
func (r *InvitationRepo) ListPendingForUser(ctx context.Context, userID string) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := r.db.SelectContext(ctx, &invitations, `SELECT `+invitationColumns+` FROM invitations
        WHERE invited_user = $1 AND status = 'pending'
        ORDER BY created_at DESC`, userID)
	return invitations, err
}
