package models

import "time"

// User is a local profile mirrored from the identity provider.
type User struct {
	ID          string    `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Email       string    `db:"email" json:"email"`
	AvatarURL   *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// MessageSummary is the denormalized preview of a conversation's latest message.
type MessageSummary struct {
	AuthorID    string `json:"author_id"`
	BodyPreview string `json:"body_preview"`
}

// Conversation is a set of participants sharing an ordered message history.
type Conversation struct {
	ID                 string         `db:"id" json:"id"`
	ParticipantIDs     []string       `db:"-" json:"participant_ids"`
	LastMessageSummary MessageSummary `db:"-" json:"last_message"`
	CreatedBy          string         `db:"created_by" json:"created_by"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ConversationEvent is broadcast to websocket subscribers of a conversation.
type ConversationEvent struct {
	Type           string     `json:"type"`
	ConversationID string     `json:"conversation_id"`
	Message        *Message   `json:"message,omitempty"`
	UserID         string     `json:"user_id,omitempty"`
	Count          int        `json:"count,omitempty"`
	At             *time.Time `json:"at,omitempty"`
}

const (
	EventMessage           = "message"
	EventRead              = "read"
	EventParticipantJoined = "participant_joined"
	EventInvitation        = "invitation"
)
