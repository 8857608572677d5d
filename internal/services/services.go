// Package services holds the conversation, receipt, invitation and user
// rules on top of the repositories.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chat-service/internal/repositories"
)

// Clock returns the current time. Tests swap it for a fixed clock.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// Services groups every domain service built on one store.
type Services struct {
	Users         *UserService
	Conversations *ConversationService
	Receipts      *ReceiptService
	Invitations   *InvitationService
}

// Option customizes the services created by New.
type Option func(*settings)

type settings struct {
	clock Clock
	newID func() string
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(s *settings) { s.clock = clock }
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *settings) { s.newID = gen }
}

// New wires the domain services on store.
func New(store repositories.Store, opts ...Option) *Services {
	cfg := settings{clock: systemClock, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&cfg)
	}
	conversations := &ConversationService{
		conversations: store.Conversations,
		messages:      store.Messages,
		clock:         cfg.clock,
		newID:         cfg.newID,
	}
	return &Services{
		Users:         &UserService{users: store.Users, clock: cfg.clock},
		Conversations: conversations,
		Receipts: &ReceiptService{
			conversations: store.Conversations,
			messages:      store.Messages,
			clock:         cfg.clock,
		},
		Invitations: &InvitationService{
			conversations: store.Conversations,
			messages:      store.Messages,
			invitations:   store.Invitations,
			users:         store.Users,
			clock:         cfg.clock,
			newID:         cfg.newID,
		},
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrConversationNotFound):
		return fmt.Errorf("conversation: %w", ErrNotFound)
	case errors.Is(err, repositories.ErrNoPendingInvitation):
		return ErrNoPendingInvitation
	case errors.Is(err, repositories.ErrDuplicateInvitation):
		return ErrAlreadyInvited
	case errors.Is(err, repositories.ErrUserNotFound):
		return fmt.Errorf("user: %w", ErrNotFound)
	}
	return err
}

// checkParticipant answers membership from the participant index and only
// loads the conversation to tell a missing conversation from a foreign one.
func checkParticipant(ctx context.Context, conversations repositories.ConversationRepository, conversationID, userID string) error {
	ok, err := conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return translate(err)
	}
	if ok {
		return nil
	}
	if _, err := conversations.GetConversation(ctx, conversationID); err != nil {
		return translate(err)
	}
	return ErrUnauthorized
}
