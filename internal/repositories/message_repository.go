package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-service/internal/models"
)

// MessageRepository defines interactions for conversation messages and
// their read receipts.
type MessageRepository interface {
	// AppendMessage inserts msg and refreshes the conversation summary and
	// updated_at in one transaction.
	AppendMessage(ctx context.Context, msg models.Message) error
	// ListMessages returns the latest limit messages in ascending order.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	// AcknowledgeAll records a receipt for every message userID did not
	// author and has not acknowledged yet. It returns how many were added.
	AcknowledgeAll(ctx context.Context, conversationID string, userID string, at time.Time) (int, error)
	UnreadCount(ctx context.Context, conversationID string, userID string) (int, error)
	UnreadCounts(ctx context.Context, userID string) (map[string]int, error)
	CountSince(ctx context.Context, conversationID string, since time.Time) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

type messageRow struct {
	ID                 string         `db:"id"`
	ConversationID     string         `db:"conversation_id"`
	AuthorID           string         `db:"author_id"`
	Body               string         `db:"body"`
	AttachmentURL      sql.NullString `db:"attachment_url"`
	AttachmentKind     sql.NullString `db:"attachment_kind"`
	AttachmentFileName sql.NullString `db:"attachment_file_name"`
	CreatedAt          time.Time      `db:"created_at"`
}

func (row messageRow) model() models.Message {
	msg := models.Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		AuthorID:       row.AuthorID,
		Body:           row.Body,
		CreatedAt:      row.CreatedAt,
		AcknowledgedBy: []models.Acknowledgement{},
	}
	if row.AttachmentURL.Valid {
		msg.Attachment = &models.Attachment{
			URL:      row.AttachmentURL.String,
			Kind:     models.AttachmentKind(row.AttachmentKind.String),
			FileName: row.AttachmentFileName.String,
		}
	}
	return msg
}

func insertMessage(ctx context.Context, tx *sqlx.Tx, msg models.Message) error {
	var url, kind, fileName sql.NullString
	if msg.Attachment != nil {
		url = sql.NullString{String: msg.Attachment.URL, Valid: true}
		kind = sql.NullString{String: string(msg.Attachment.Kind), Valid: true}
		fileName = sql.NullString{String: msg.Attachment.FileName, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO messages (id, conversation_id, author_id, body, attachment_url, attachment_kind, attachment_file_name, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, msg.ConversationID, msg.AuthorID, msg.Body, url, kind, fileName, msg.CreatedAt)
	return err
}

// AppendMessage stores a message and touches its conversation.
func (r *MessageRepo) AppendMessage(ctx context.Context, msg models.Message) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx, &err)

	summary := msg.Summary()
	res, err := tx.ExecContext(ctx, `UPDATE conversations
        SET last_author_id = $2, last_body_preview = $3, updated_at = GREATEST(updated_at, $4)
        WHERE id = $1`, msg.ConversationID, summary.AuthorID, summary.BodyPreview, msg.CreatedAt)
	if err != nil {
		err = notFoundOnBadID(err)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrConversationNotFound
		return err
	}

	if err = insertMessage(ctx, tx, msg); err != nil {
		return err
	}
	return tx.Commit()
}

// ListMessages returns the newest limit messages with their receipts, oldest first.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	query := `SELECT id, conversation_id, author_id, body, attachment_url, attachment_kind, attachment_file_name, created_at
        FROM (
            SELECT id, conversation_id, author_id, body, attachment_url, attachment_kind, attachment_file_name, created_at, seq
            FROM messages WHERE conversation_id = $1
            ORDER BY created_at DESC, seq DESC
            LIMIT $2
        ) latest
        ORDER BY created_at ASC, seq ASC`
	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, conversationID, limit); err != nil {
		return nil, notFoundOnBadID(err)
	}
	if len(rows) == 0 {
		return []models.Message{}, nil
	}

	msgs := make([]models.Message, 0, len(rows))
	index := make(map[string]int, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		index[row.ID] = len(msgs)
		ids = append(ids, row.ID)
		msgs = append(msgs, row.model())
	}

	var acks []struct {
		MessageID string `db:"message_id"`
		models.Acknowledgement
	}
	if err := r.db.SelectContext(ctx, &acks, `SELECT message_id, user_id, acknowledged_at
        FROM message_acknowledgements WHERE message_id::text = ANY($1)
        ORDER BY acknowledged_at, user_id`, pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, ack := range acks {
		i := index[ack.MessageID]
		msgs[i].AcknowledgedBy = append(msgs[i].AcknowledgedBy, ack.Acknowledgement)
	}
	return msgs, nil
}

// AcknowledgeAll inserts receipts for unread messages; existing receipts are left untouched.
func (r *MessageRepo) AcknowledgeAll(ctx context.Context, conversationID string, userID string, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO message_acknowledgements (message_id, user_id, acknowledged_at)
        SELECT m.id, $2, $3 FROM messages m
        WHERE m.conversation_id = $1 AND m.author_id <> $2
        ON CONFLICT (message_id, user_id) DO NOTHING`, conversationID, userID, at)
	if err != nil {
		return 0, notFoundOnBadID(err)
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

// UnreadCount counts messages in the conversation userID has not acknowledged.
func (r *MessageRepo) UnreadCount(ctx context.Context, conversationID string, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages m
        WHERE m.conversation_id = $1 AND m.author_id <> $2
        AND NOT EXISTS (SELECT 1 FROM message_acknowledgements a WHERE a.message_id = m.id AND a.user_id = $2)`,
		conversationID, userID)
	if err != nil {
		return 0, notFoundOnBadID(err)
	}
	return count, nil
}

// UnreadCounts aggregates unread messages for every conversation of userID in one query.
func (r *MessageRepo) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	var rows []struct {
		ConversationID string `db:"conversation_id"`
		Unread         int    `db:"unread"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT p.conversation_id, COUNT(m.id) AS unread
        FROM conversation_participants p
        LEFT JOIN messages m ON m.conversation_id = p.conversation_id
            AND m.author_id <> p.user_id
            AND NOT EXISTS (SELECT 1 FROM message_acknowledgements a WHERE a.message_id = m.id AND a.user_id = p.user_id)
        WHERE p.user_id = $1
        GROUP BY p.conversation_id`, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.ConversationID] = row.Unread
	}
	return counts, nil
}

// CountSince counts messages created at or after since.
func (r *MessageRepo) CountSince(ctx context.Context, conversationID string, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE conversation_id = $1 AND created_at >= $2`, conversationID, since)
	if err != nil {
		return 0, notFoundOnBadID(err)
	}
	return count, nil
}
