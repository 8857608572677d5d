package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chat-service/internal/models"
	"chat-service/internal/repositories"
)

// RecentMessageWindow bounds the message count shown with pending invitations.
const RecentMessageWindow = 24 * time.Hour

// InvitationService drives the Pending -> Accepted | Rejected workflow.
type InvitationService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	invitations   repositories.InvitationRepository
	users         repositories.UserRepository
	clock         Clock
	newID         func() string
}

// Invite creates a pending invitation for invitedUserID.
func (s *InvitationService) Invite(ctx context.Context, conversationID, invitedByID, invitedUserID string) (models.Invitation, error) {
	invitedUserID = strings.TrimSpace(invitedUserID)
	if invitedUserID == "" {
		return models.Invitation{}, fmt.Errorf("%w: invited user is required", ErrValidation)
	}

	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Invitation{}, translate(err)
	}
	if !conv.HasParticipant(invitedByID) {
		return models.Invitation{}, ErrUnauthorized
	}
	if conv.HasParticipant(invitedUserID) {
		return models.Invitation{}, ErrAlreadyParticipant
	}

	inv := models.Invitation{
		ID:             s.newID(),
		ConversationID: conv.ID,
		InvitedBy:      invitedByID,
		InvitedUser:    invitedUserID,
		Status:         models.InvitationPending,
		CreatedAt:      s.clock(),
	}
	if err := s.invitations.CreateInvitation(ctx, inv); err != nil {
		return models.Invitation{}, translate(err)
	}
	return inv, nil
}

// Respond settles the pending invitation. Accepting joins the conversation
// in the same transaction.
func (s *InvitationService) Respond(ctx context.Context, conversationID, invitedUserID string, accept bool) (models.Invitation, error) {
	inv, err := s.invitations.RespondToInvitation(ctx, conversationID, invitedUserID, accept, s.clock())
	if err != nil {
		return models.Invitation{}, translate(err)
	}
	return inv, nil
}

// PendingFor lists userID's pending invitations with inviter, participant
// profiles and recent activity.
func (s *InvitationService) PendingFor(ctx context.Context, userID string) ([]models.PendingInvitation, error) {
	invitations, err := s.invitations.ListPendingForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	since := s.clock().Add(-RecentMessageWindow)

	result := make([]models.PendingInvitation, 0, len(invitations))
	for _, inv := range invitations {
		conv, err := s.conversations.GetConversation(ctx, inv.ConversationID)
		if err != nil {
			return nil, translate(err)
		}
		profiles, err := s.users.GetUsers(ctx, append([]string{inv.InvitedBy}, conv.ParticipantIDs...))
		if err != nil {
			return nil, err
		}
		recent, err := s.messages.CountSince(ctx, conv.ID, since)
		if err != nil {
			return nil, translate(err)
		}

		pending := models.PendingInvitation{
			Invitation:         inv,
			Conversation:       conv,
			Participants:       []models.User{},
			RecentMessageCount: recent,
		}
		for i := range profiles {
			if profiles[i].ID == inv.InvitedBy {
				inviter := profiles[i]
				pending.Inviter = &inviter
			}
			if conv.HasParticipant(profiles[i].ID) {
				pending.Participants = append(pending.Participants, profiles[i])
			}
		}
		result = append(result, pending)
	}
	return result, nil
}
