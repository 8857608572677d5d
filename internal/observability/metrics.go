package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "chat"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by method, route template and status code.",
	}, []string{"method", "route", "status"})
	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "HTTP request latency by route template.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	grpcHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "grpc", Name: "server_handled_total",
		Help: "Unary gRPC calls handled, by service, method and code.",
	}, []string{"grpc_service", "grpc_method", "grpc_code"})

	wsConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "ws", Name: "active_connections",
		Help: "Open websocket connections by room kind.",
	}, []string{"kind"})
	wsEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "ws", Name: "events_total",
		Help: "Websocket lifecycle and push events.",
	}, []string{"kind", "event"})

	amqpPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "amqp", Name: "publish_errors_total",
		Help: "Events that could not be published to RabbitMQ.",
	})

	messagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "messages_appended_total",
		Help: "Messages appended to conversations, by content kind.",
	}, []string{"kind"})
	readReceipts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "read_receipts_total",
		Help: "Acknowledgements recorded by markAsRead.",
	})
	invitations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "invitations_total",
		Help: "Invitation transitions by outcome.",
	}, []string{"outcome"})
	uploadsPresigned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "uploads", Name: "presigned_total",
		Help: "Presigned upload URLs issued, by attachment kind.",
	}, []string{"kind"})

	researchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "research", Name: "runs_total",
		Help: "Research assistant runs by route and outcome.",
	}, []string{"route", "outcome"})
	researchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "research", Name: "run_duration_seconds",
		Help:    "Wall time of a research run from first to last event.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"route"})
	transcriptsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "research", Name: "transcripts_pruned_total",
		Help: "Transcript entries removed by the retention job.",
	})
)

// HTTPMetricsMiddleware counts requests by route template so path
// parameters do not explode label cardinality.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		service, method := splitFullMethod(info.FullMethod)
		grpcHandled.WithLabelValues(service, method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// splitFullMethod turns "/pkg.Service/Method" into its two parts.
func splitFullMethod(fullMethod string) (string, string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok || service == "" || method == "" {
		return "unknown", "unknown"
	}
	return service, method
}

func IncWSActive(kind string)        { wsConnections.WithLabelValues(kind).Inc() }
func DecWSActive(kind string)        { wsConnections.WithLabelValues(kind).Dec() }
func IncWSEvent(kind, event string)  { wsEvents.WithLabelValues(kind, event).Inc() }
func IncAMQPPublishError()           { amqpPublishErrors.Inc() }
func IncMessageAppended(kind string) { messagesAppended.WithLabelValues(kind).Inc() }
func IncInvitation(outcome string)   { invitations.WithLabelValues(outcome).Inc() }
func IncUploadPresigned(kind string) { uploadsPresigned.WithLabelValues(kind).Inc() }

func AddReadReceipts(n int) {
	if n > 0 {
		readReceipts.Add(float64(n))
	}
}

// ObserveResearchRun records a finished research run. outcome is "ok" or the
// failure type carried on the final event.
func ObserveResearchRun(route, outcome string, elapsed time.Duration) {
	researchRuns.WithLabelValues(route, outcome).Inc()
	researchLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func AddTranscriptsPruned(n int64) {
	if n > 0 {
		transcriptsPruned.Add(float64(n))
	}
}
