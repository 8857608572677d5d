package services

import (
	"context"
	"fmt"
	"strings"

	"chat-service/internal/models"
	"chat-service/internal/repositories"
)

const (
	DefaultConversationPageSize = 50
	MaxConversationPageSize     = 200
	MessagesPerPage             = 100
	DefaultInitialBody          = "Chat created"
)

// MessageView is a message together with the viewer-relative read status.
type MessageView struct {
	models.Message
	ReadStatus string `json:"read_status,omitempty"`
}

// ConversationService owns conversation creation, listing and message appends.
type ConversationService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	clock         Clock
	newID         func() string
}

// Create builds a conversation of creatorID plus participantIDs and records
// the initial message.
func (s *ConversationService) Create(ctx context.Context, creatorID string, participantIDs []string, initialBody string) (models.Conversation, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return models.Conversation{}, fmt.Errorf("%w: creator is required", ErrValidation)
	}

	participants := []string{creatorID}
	seen := map[string]struct{}{creatorID: {}}
	for _, id := range participantIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		participants = append(participants, id)
	}
	if len(participants) < 2 {
		return models.Conversation{}, fmt.Errorf("%w: at least one other participant is required", ErrValidation)
	}

	body := strings.TrimSpace(initialBody)
	if body == "" {
		body = DefaultInitialBody
	}

	now := s.clock()
	conv := models.Conversation{
		ID:             s.newID(),
		ParticipantIDs: participants,
		CreatedBy:      creatorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	first := models.Message{
		ID:             s.newID(),
		ConversationID: conv.ID,
		AuthorID:       creatorID,
		Body:           body,
		CreatedAt:      now,
		AcknowledgedBy: []models.Acknowledgement{},
	}
	conv.LastMessageSummary = first.Summary()

	if err := s.conversations.CreateConversation(ctx, conv, first); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// ListForUser pages through the user's conversations, newest activity first.
func (s *ConversationService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = DefaultConversationPageSize
	}
	if limit > MaxConversationPageSize {
		limit = MaxConversationPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.conversations.ListConversationsForUser(ctx, userID, limit, offset)
}

// Get returns the conversation when viewerID participates in it.
func (s *ConversationService) Get(ctx context.Context, conversationID, viewerID string) (models.Conversation, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, translate(err)
	}
	if !conv.HasParticipant(viewerID) {
		return models.Conversation{}, ErrUnauthorized
	}
	return conv, nil
}

// CheckParticipant returns nil when userID belongs to the conversation,
// ErrUnauthorized when it does not and ErrNotFound when there is no such
// conversation.
func (s *ConversationService) CheckParticipant(ctx context.Context, conversationID, userID string) error {
	return checkParticipant(ctx, s.conversations, conversationID, userID)
}

// AppendMessage validates the author and content, then appends the message
// and touches the conversation.
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID, authorID, body string, attachment *models.Attachment) (models.Message, error) {
	body = strings.TrimSpace(body)
	if attachment != nil {
		if strings.TrimSpace(attachment.URL) == "" {
			return models.Message{}, fmt.Errorf("%w: attachment url is required", ErrValidation)
		}
		if !attachment.Kind.Valid() {
			return models.Message{}, fmt.Errorf("%w: attachment kind must be image or video", ErrValidation)
		}
	}
	if body == "" && attachment == nil {
		return models.Message{}, fmt.Errorf("%w: message body or attachment is required", ErrValidation)
	}

	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Message{}, translate(err)
	}
	if !conv.HasParticipant(authorID) {
		return models.Message{}, ErrNotAParticipant
	}

	msg := models.Message{
		ID:             s.newID(),
		ConversationID: conv.ID,
		AuthorID:       authorID,
		Body:           body,
		Attachment:     attachment,
		CreatedAt:      s.clock(),
		AcknowledgedBy: []models.Acknowledgement{},
	}
	if err := s.messages.AppendMessage(ctx, msg); err != nil {
		return models.Message{}, translate(err)
	}
	return msg, nil
}

// Messages returns the latest page*MessagesPerPage messages in ascending order.
func (s *ConversationService) Messages(ctx context.Context, conversationID, viewerID string, page int) ([]MessageView, error) {
	if page < 1 {
		page = 1
	}
	if err := s.CheckParticipant(ctx, conversationID, viewerID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListMessages(ctx, conversationID, page*MessagesPerPage)
	if err != nil {
		return nil, translate(err)
	}
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, MessageView{Message: m, ReadStatus: models.ReadStatus(m, viewerID)})
	}
	return views, nil
}
