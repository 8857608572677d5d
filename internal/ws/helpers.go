package ws

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConnInfo is what lifecycle events report about one socket.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) connectedFor(now time.Time) time.Duration {
	if i.ConnectedAt.IsZero() {
		return 0
	}
	return now.Sub(i.ConnectedAt)
}

func newConnID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// clientFrame is a frame sent by the browser. Only "read" is understood.
type clientFrame struct {
	Type string `json:"type"`
}

const frameRead = "read"
