package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadStatus(t *testing.T) {
	now := time.Now()
	msg := Message{ID: "m1", AuthorID: "alice"}

	assert.Equal(t, "Sent", ReadStatus(msg, "alice"))
	assert.Equal(t, "", ReadStatus(msg, "bob"))

	msg.AcknowledgedBy = []Acknowledgement{{UserID: "bob", AcknowledgedAt: now}}
	assert.Equal(t, "Read", ReadStatus(msg, "alice"))

	msg.AcknowledgedBy = append(msg.AcknowledgedBy, Acknowledgement{UserID: "carol", AcknowledgedAt: now})
	assert.Equal(t, "Read by 2", ReadStatus(msg, "alice"))
}

func TestSummaryUsesAttachmentPlaceholder(t *testing.T) {
	msg := Message{AuthorID: "alice", Attachment: &Attachment{Kind: AttachmentVideo, URL: "https://cdn/x.mp4"}}
	assert.Equal(t, MessageSummary{AuthorID: "alice", BodyPreview: "🎥 Video"}, msg.Summary())

	msg.Attachment.Kind = AttachmentImage
	assert.Equal(t, "📷 Image", msg.Summary().BodyPreview)

	msg.Body = "look"
	assert.Equal(t, "look", msg.Summary().BodyPreview)
}

func TestInvitationStatusTerminal(t *testing.T) {
	assert.False(t, InvitationPending.Terminal())
	assert.True(t, InvitationAccepted.Terminal())
	assert.True(t, InvitationRejected.Terminal())
}
