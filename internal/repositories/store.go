package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNoPendingInvitation  = errors.New("no pending invitation")
	ErrDuplicateInvitation  = errors.New("pending invitation already exists")
	ErrUserNotFound         = errors.New("user not found")
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store bundles the repositories used by the services.
type Store struct {
	Users         UserRepository
	Conversations ConversationRepository
	Messages      MessageRepository
	Invitations   InvitationRepository
	Transcripts   TranscriptRepository
	Health        Pinger
}

// NewPostgresStore wires the sqlx-backed repositories on a shared pool.
func NewPostgresStore(db *sqlx.DB) Store {
	return Store{
		Users:         NewUserRepo(db),
		Conversations: NewConversationRepo(db),
		Messages:      NewMessageRepo(db),
		Invitations:   NewInvitationRepo(db),
		Transcripts:   NewTranscriptRepo(db),
		Health:        dbPinger{db: db},
	}
}

type dbPinger struct {
	db *sqlx.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqInvalidText         = "22P02"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// notFoundOnBadID maps malformed UUID input to a not-found result; callers
// pass ids straight from the URL.
func notFoundOnBadID(err error) error {
	switch pqCode(err) {
	case pqInvalidText, pqForeignKeyViolation:
		return ErrConversationNotFound
	}
	return err
}

func rollback(tx *sqlx.Tx, err *error) {
	if *err != nil {
		_ = tx.Rollback()
	}
}
