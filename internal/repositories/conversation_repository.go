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

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	// CreateConversation stores the conversation, its participant index and
	// its first message atomically.
	CreateConversation(ctx context.Context, conv models.Conversation, first models.Message) error
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string, limit, offset int) ([]models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID string, userID string) (bool, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

type conversationRow struct {
	ID              string         `db:"id"`
	CreatedBy       string         `db:"created_by"`
	LastAuthorID    string         `db:"last_author_id"`
	LastBodyPreview string         `db:"last_body_preview"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	ParticipantIDs  pq.StringArray `db:"participant_ids"`
}

func (row conversationRow) model() models.Conversation {
	return models.Conversation{
		ID:             row.ID,
		ParticipantIDs: []string(row.ParticipantIDs),
		LastMessageSummary: models.MessageSummary{
			AuthorID:    row.LastAuthorID,
			BodyPreview: row.LastBodyPreview,
		},
		CreatedBy: row.CreatedBy,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

const conversationColumns = `c.id, c.created_by, c.last_author_id, c.last_body_preview, c.created_at, c.updated_at,
        ARRAY(SELECT p.user_id FROM conversation_participants p WHERE p.conversation_id = c.id ORDER BY p.position) AS participant_ids`

// CreateConversation inserts the conversation row, participants and first message in one transaction.
func (r *ConversationRepo) CreateConversation(ctx context.Context, conv models.Conversation, first models.Message) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx, &err)

	summary := first.Summary()
	if _, err = tx.ExecContext(ctx, `INSERT INTO conversations (id, created_by, last_author_id, last_body_preview, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		conv.ID, conv.CreatedBy, summary.AuthorID, summary.BodyPreview, conv.CreatedAt, conv.UpdatedAt); err != nil {
		return err
	}

	for position, userID := range conv.ParticipantIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id, position, joined_at)
            VALUES ($1, $2, $3, $4)`, conv.ID, userID, position, conv.CreatedAt); err != nil {
			return err
		}
	}

	if err = insertMessage(ctx, tx, first); err != nil {
		return err
	}
	return tx.Commit()
}

// GetConversation fetches a conversation with its ordered participants.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	var row conversationRow
	err := r.db.GetContext(ctx, &row, `SELECT `+conversationColumns+` FROM conversations c WHERE c.id = $1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, notFoundOnBadID(err)
	}
	return row.model(), nil
}

// ListConversationsForUser walks the participant index for userID, newest activity first.
func (r *ConversationRepo) ListConversationsForUser(ctx context.Context, userID string, limit, offset int) ([]models.Conversation, error) {
	query := `SELECT ` + conversationColumns + `
        FROM conversation_participants me
        INNER JOIN conversations c ON c.id = me.conversation_id
        WHERE me.user_id = $1
        ORDER BY c.updated_at DESC, c.id
        LIMIT $2 OFFSET $3`
	var rows []conversationRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, err
	}
	result := make([]models.Conversation, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.model())
	}
	return result, nil
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID string, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`, conversationID, userID)
	if pqCode(err) == pqInvalidText {
		return false, nil
	}
	return exists, err
}
