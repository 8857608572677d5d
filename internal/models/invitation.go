package models

import "time"

// InvitationStatus is the state of an invitation. Pending is the only
// non-terminal state.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s InvitationStatus) Terminal() bool {
	return s == InvitationAccepted || s == InvitationRejected
}

// Invitation proposes that a non-participant join a conversation.
type Invitation struct {
	ID             string           `db:"id" json:"id"`
	ConversationID string           `db:"conversation_id" json:"conversation_id"`
	InvitedBy      string           `db:"invited_by" json:"invited_by"`
	InvitedUser    string           `db:"invited_user" json:"invited_user"`
	Status         InvitationStatus `db:"status" json:"status"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	RespondedAt    *time.Time       `db:"responded_at" json:"responded_at,omitempty"`
}

// PendingInvitation is the enriched projection shown to the invited user.
type PendingInvitation struct {
	Invitation
	Inviter            *User        `json:"inviter,omitempty"`
	Conversation       Conversation `json:"conversation"`
	Participants       []User       `json:"participants"`
	RecentMessageCount int          `json:"recent_message_count"`
}
