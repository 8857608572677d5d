package models

import (
	"fmt"
	"time"
)

// AttachmentKind enumerates the media types a message may carry.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
)

// Valid reports whether the kind is one of the supported media types.
func (k AttachmentKind) Valid() bool {
	return k == AttachmentImage || k == AttachmentVideo
}

// Placeholder is the summary preview used when a message has no body.
func (k AttachmentKind) Placeholder() string {
	switch k {
	case AttachmentImage:
		return "📷 Image"
	case AttachmentVideo:
		return "🎥 Video"
	default:
		return "📎 Attachment"
	}
}

// Attachment points at an uploaded media object.
type Attachment struct {
	URL      string         `json:"url"`
	Kind     AttachmentKind `json:"kind"`
	FileName string         `json:"file_name"`
}

// Acknowledgement is a read receipt left by a single user.
type Acknowledgement struct {
	UserID         string    `db:"user_id" json:"user_id"`
	AcknowledgedAt time.Time `db:"acknowledged_at" json:"acknowledged_at"`
}

// Message is an entry in a conversation's message log.
type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	AuthorID       string            `json:"author_id"`
	Body           string            `json:"body"`
	Attachment     *Attachment       `json:"attachment,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	AcknowledgedBy []Acknowledgement `json:"acknowledged_by"`
}

// IsAcknowledgedBy reports whether userID has a receipt on the message.
func (m Message) IsAcknowledgedBy(userID string) bool {
	for _, ack := range m.AcknowledgedBy {
		if ack.UserID == userID {
			return true
		}
	}
	return false
}

// Summary builds the conversation preview for this message.
func (m Message) Summary() MessageSummary {
	preview := m.Body
	if preview == "" && m.Attachment != nil {
		preview = m.Attachment.Kind.Placeholder()
	}
	return MessageSummary{AuthorID: m.AuthorID, BodyPreview: preview}
}

// ReadStatus is the viewer-relative delivery label for a message.
// It is only defined for the viewer's own messages.
func ReadStatus(m Message, viewerID string) string {
	if m.AuthorID != viewerID {
		return ""
	}
	readers := 0
	for _, ack := range m.AcknowledgedBy {
		if ack.UserID != m.AuthorID {
			readers++
		}
	}
	switch readers {
	case 0:
		return "Sent"
	case 1:
		return "Read"
	default:
		return fmt.Sprintf("Read by %d", readers)
	}
}
