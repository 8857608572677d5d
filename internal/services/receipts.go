package services

import (
	"context"

	"chat-service/internal/repositories"
)

// ReceiptService records acknowledgements and derives unread counts.
type ReceiptService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	clock         Clock
}

// MarkAsRead acknowledges every message userID has not authored or already
// acknowledged. Repeat calls add nothing.
func (s *ReceiptService) MarkAsRead(ctx context.Context, conversationID, userID string) (int, error) {
	if err := checkParticipant(ctx, s.conversations, conversationID, userID); err != nil {
		return 0, err
	}
	n, err := s.messages.AcknowledgeAll(ctx, conversationID, userID, s.clock())
	return n, translate(err)
}

func (s *ReceiptService) UnreadCount(ctx context.Context, conversationID, userID string) (int, error) {
	if err := checkParticipant(ctx, s.conversations, conversationID, userID); err != nil {
		return 0, err
	}
	n, err := s.messages.UnreadCount(ctx, conversationID, userID)
	return n, translate(err)
}

// UnreadCounts maps every conversation of userID to its unread count.
func (s *ReceiptService) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	return s.messages.UnreadCounts(ctx, userID)
}
