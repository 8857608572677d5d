package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-service/internal/models"
)

// TranscriptRepository stores research-assistant history per user.
type TranscriptRepository interface {
	AddEntry(ctx context.Context, entry models.TranscriptEntry) error
	// ListEntries returns the newest limit entries for userID, oldest first.
	ListEntries(ctx context.Context, userID string, limit int) ([]models.TranscriptEntry, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TranscriptRepo is a sqlx implementation of TranscriptRepository.
type TranscriptRepo struct {
	db *sqlx.DB
}

// NewTranscriptRepo constructs a TranscriptRepo.
func NewTranscriptRepo(db *sqlx.DB) *TranscriptRepo {
	return &TranscriptRepo{db: db}
}

type transcriptRow struct {
	ID                string    `db:"id"`
	UserID            string    `db:"user_id"`
	Role              string    `db:"role"`
	Content           string    `db:"content"`
	Route             string    `db:"route"`
	SearchQuery       string    `db:"search_query"`
	Sources           []byte    `db:"sources"`
	FollowUpQuestions []byte    `db:"follow_up_questions"`
	CreatedAt         time.Time `db:"created_at"`
}

func (row transcriptRow) model() (models.TranscriptEntry, error) {
	entry := models.TranscriptEntry{
		ID:          row.ID,
		UserID:      row.UserID,
		Role:        row.Role,
		Content:     row.Content,
		Route:       row.Route,
		SearchQuery: row.SearchQuery,
		CreatedAt:   row.CreatedAt,
	}
	if len(row.Sources) > 0 {
		if err := json.Unmarshal(row.Sources, &entry.Sources); err != nil {
			return models.TranscriptEntry{}, fmt.Errorf("decode sources: %w", err)
		}
	}
	if len(row.FollowUpQuestions) > 0 {
		if err := json.Unmarshal(row.FollowUpQuestions, &entry.FollowUpQuestions); err != nil {
			return models.TranscriptEntry{}, fmt.Errorf("decode follow-up questions: %w", err)
		}
	}
	return entry, nil
}

// AddEntry appends one turn to the transcript.
func (r *TranscriptRepo) AddEntry(ctx context.Context, entry models.TranscriptEntry) error {
	sources := entry.Sources
	if sources == nil {
		sources = []models.TranscriptSource{}
	}
	followUps := entry.FollowUpQuestions
	if followUps == nil {
		followUps = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return err
	}
	followUpsJSON, err := json.Marshal(followUps)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO research_transcripts
        (id, user_id, role, content, route, search_query, sources, follow_up_questions, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.UserID, entry.Role, entry.Content, entry.Route, entry.SearchQuery,
		string(sourcesJSON), string(followUpsJSON), entry.CreatedAt)
	return err
}

// ListEntries returns a user's recent history in chronological order.
func (r *TranscriptRepo) ListEntries(ctx context.Context, userID string, limit int) ([]models.TranscriptEntry, error) {
	var rows []transcriptRow
	err := r.db.SelectContext(ctx, &rows, `SELECT id, user_id, role, content, route, search_query, sources, follow_up_questions, created_at
        FROM (
            SELECT * FROM research_transcripts WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
        ) recent
        ORDER BY created_at ASC`, userID, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]models.TranscriptEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.model()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// PruneOlderThan deletes entries created before cutoff.
func (r *TranscriptRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM research_transcripts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
