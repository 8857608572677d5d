package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chat-service/internal/models"
	"chat-service/internal/repositories"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateConversation(ctx context.Context, conv models.Conversation, first models.Message) error {
	args := m.Called(ctx, conv, first)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListConversationsForUser(ctx context.Context, userID string, limit, offset int) ([]models.Conversation, error) {
	args := m.Called(ctx, userID, limit, offset)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID string, userID string) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) AppendMessage(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) AcknowledgeAll(ctx context.Context, conversationID string, userID string, at time.Time) (int, error) {
	args := m.Called(ctx, conversationID, userID, at)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCount(ctx context.Context, conversationID string, userID string) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	args := m.Called(ctx, userID)
	var counts map[string]int
	if val := args.Get(0); val != nil {
		counts = val.(map[string]int)
	}
	return counts, args.Error(1)
}

func (m *MessageRepositoryMock) CountSince(ctx context.Context, conversationID string, since time.Time) (int, error) {
	args := m.Called(ctx, conversationID, since)
	return args.Int(0), args.Error(1)
}

type InvitationRepositoryMock struct {
	mock.Mock
}

func (m *InvitationRepositoryMock) CreateInvitation(ctx context.Context, inv models.Invitation) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *InvitationRepositoryMock) RespondToInvitation(ctx context.Context, conversationID string, invitedUser string, accept bool, at time.Time) (models.Invitation, error) {
	args := m.Called(ctx, conversationID, invitedUser, accept, at)
	var inv models.Invitation
	if val := args.Get(0); val != nil {
		inv = val.(models.Invitation)
	}
	return inv, args.Error(1)
}

func (m *InvitationRepositoryMock) ListPendingForUser(ctx context.Context, userID string) ([]models.Invitation, error) {
	args := m.Called(ctx, userID)
	var list []models.Invitation
	if val := args.Get(0); val != nil {
		list = val.([]models.Invitation)
	}
	return list, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) UpsertUser(ctx context.Context, user models.User, at time.Time) (models.User, error) {
	args := m.Called(ctx, user, at)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) UpdateProfile(ctx context.Context, id, displayName string, avatarURL *string, at time.Time) (models.User, error) {
	args := m.Called(ctx, id, displayName, avatarURL, at)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.InvitationRepository = (*InvitationRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
