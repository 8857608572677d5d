package observability

import (
	"context"
	"sync/atomic"
)

// Publisher delivers JSON events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

type publisherHolder struct {
	p Publisher
}

var defaultPublisher atomic.Pointer[publisherHolder]

// SetPublisher installs the publisher used by PublishEvent. nil disables
// event publishing.
func SetPublisher(publisher Publisher) {
	if publisher == nil {
		defaultPublisher.Store(nil)
		return
	}
	defaultPublisher.Store(&publisherHolder{p: publisher})
}

func PublishEvent(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	holder := defaultPublisher.Load()
	if holder == nil {
		return nil
	}

	err := holder.p.Publish(ctx, routingKey, message, headers)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
