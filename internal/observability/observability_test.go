package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFullMethod(t *testing.T) {
	service, method := splitFullMethod("/grpc.health.v1.Health/Check")
	assert.Equal(t, "grpc.health.v1.Health", service)
	assert.Equal(t, "Check", method)

	service, method = splitFullMethod("garbage")
	assert.Equal(t, "unknown", service)
	assert.Equal(t, "unknown", method)
}

func TestOriginOfPrefersAssignedRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/ws/conversations/c1", nil)
	c.Request.RemoteAddr = "10.0.0.7:5555"
	c.Request.Header.Set("X-Device-Id", "phone")
	c.Request.Header.Set("X-Request-ID", "from-client")

	assert.Equal(t, Origin{DeviceID: "phone", RequestID: "from-client", IP: "10.0.0.7"}, OriginOf(c))

	c.Set("request_id", "assigned")
	assert.Equal(t, "assigned", OriginOf(c).RequestID)
}

type recordingPublisher struct {
	routingKey string
	headers    map[string]string
	err        error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any, headers map[string]string) error {
	p.routingKey, p.headers = routingKey, headers
	return p.err
}

func TestPublishEventCountsFailures(t *testing.T) {
	t.Cleanup(func() { SetPublisher(nil) })

	pub := &recordingPublisher{}
	SetPublisher(pub)
	require.NoError(t, PublishEvent(context.Background(), "ws_events.conversations", EventEnvelope{EventName: "ws_connect"}, BuildHeaders("r1", "t1")))
	assert.Equal(t, "ws_events.conversations", pub.routingKey)
	assert.Equal(t, "r1", pub.headers["x-request-id"])

	before := testutil.ToFloat64(amqpPublishErrors)
	pub.err = errors.New("channel closed")
	assert.Error(t, PublishEvent(context.Background(), "ws_events.conversations", EventEnvelope{}, nil))
	assert.Equal(t, before+1, testutil.ToFloat64(amqpPublishErrors))
}
