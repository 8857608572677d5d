package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	log         zerolog.Logger
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level          string `json:"level"`
	Text           string `json:"text"`
	Action         string `json:"action,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// AuditEvent describes one audited action.
type AuditEvent struct {
	Level          string
	Text           string
	Action         string
	ConversationID string
	RequestID      string
	UserID         string
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, log zerolog.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log.With().Str("component", "audit").Logger(),
		now:         time.Now,
	}
}

// Emit publishes ev. Publish failures are logged, never returned.
func (e *AuditEmitter) Emit(ctx context.Context, ev AuditEvent) {
	if e == nil || e.publisher == nil {
		return
	}
	if ev.Level == "" {
		ev.Level = "INFO"
	}

	var userID *string
	if ev.UserID != "" {
		userID = &ev.UserID
	}

	e.log.Debug().
		Str("level", ev.Level).
		Str("action", ev.Action).
		Str("request_id", ev.RequestID).
		Str("user_id", ev.UserID).
		Msg(ev.Text)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     ev.RequestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level:          ev.Level,
			Text:           ev.Text,
			Action:         ev.Action,
			ConversationID: ev.ConversationID,
		},
	}

	headers := map[string]string{}
	if ev.RequestID != "" {
		headers["x-request-id"] = ev.RequestID
	}
	if err := e.publisher.Publish(ctx, e.routingKey, envelope, headers); err != nil {
		e.log.Error().Err(err).Str("request_id", ev.RequestID).Msg("audit publish failed")
	}
}
