package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"chat-service/internal/config"
	grpcserver "chat-service/internal/grpc"
	"chat-service/internal/handlers"
	"chat-service/internal/identity"
	"chat-service/internal/jobs"
	"chat-service/internal/middleware"
	"chat-service/internal/observability"
	"chat-service/internal/rabbitmq"
	"chat-service/internal/repositories"
	"chat-service/internal/research"
	"chat-service/internal/services"
	"chat-service/internal/storage"
	"chat-service/internal/telemetry"
	"chat-service/internal/ws"
)

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingOptions{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	store, closeStore, err := openStore(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, log)

	authenticator, err := buildAuthenticator(ctx, cfg, log)
	if err != nil {
		return err
	}
	if jwks, ok := authenticator.(*identity.JWTAuthenticator); ok {
		defer jwks.Close()
	}

	uploader, err := buildUploader(ctx, cfg, log)
	if err != nil {
		return err
	}

	svc := services.New(store)
	hub := ws.NewHub(log)
	agent := buildAgent(cfg, store, log)

	conversationHandler := handlers.NewConversationHandler(svc, hub, audit)
	invitationHandler := handlers.NewInvitationHandler(svc, hub, audit)
	userHandler := handlers.NewUserHandler(svc)
	uploadHandler := handlers.NewUploadHandler(uploader, audit)
	researchHandler := handlers.NewResearchHandler(agent, store.Transcripts)
	conversationWS := ws.NewConversationSocket(hub, authenticator, svc.Conversations, svc.Receipts, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		otelgin.Middleware(cfg.ServiceName),
		middleware.RequestLogger(log),
		observability.HTTPMetricsMiddleware(),
	)

	router.GET("/healthz", handlers.Health(store.Health))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/conversations/:conversation_id", conversationWS.Handle)

	api := router.Group("/", middleware.AuthMiddleware(authenticator, svc.Users, cfg.UserSyncInterval, log))
	api.GET("/me", userHandler.Me)
	api.PATCH("/me", userHandler.UpdateMe)
	api.GET("/users", userHandler.ListUsers)
	api.GET("/users/lookup", userHandler.LookupUser)

	api.POST("/conversations", conversationHandler.CreateConversation)
	api.GET("/conversations", conversationHandler.ListConversations)
	api.GET("/conversations/:conversation_id", conversationHandler.GetConversation)
	api.GET("/conversations/:conversation_id/messages", conversationHandler.GetMessages)
	api.POST("/conversations/:conversation_id/messages", conversationHandler.PostMessage)
	api.POST("/conversations/:conversation_id/read", conversationHandler.MarkAsRead)
	api.GET("/conversations/:conversation_id/unread", conversationHandler.UnreadCount)
	api.GET("/unread-counts", conversationHandler.UnreadCounts)

	api.POST("/conversations/:conversation_id/invitations", invitationHandler.Invite)
	api.POST("/conversations/:conversation_id/invitations/respond", invitationHandler.Respond)
	api.GET("/invitations/pending", invitationHandler.Pending)

	api.POST("/uploads/presign", uploadHandler.Presign)

	api.POST("/research/ask", researchHandler.Ask)
	api.GET("/research/history", researchHandler.History)

	handlers.RegisterDebugRoutes(api, audit, hub, cfg.DebugRoutes)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		return err
	}
	healthServer := grpcserver.NewHealthServer(store.Health, cfg.ServiceName, 10*time.Second, log)
	cleanup := jobs.NewTranscriptCleanup(store.Transcripts, cfg.TranscriptRetention, cfg.TranscriptCleanupCron, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return healthServer.Serve(gctx, grpcListener)
	})
	g.Go(func() error {
		return cleanup.Run(gctx)
	})

	return g.Wait()
}

func buildAuthenticator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (identity.Authenticator, error) {
	if cfg.AuthMode == config.AuthModeHeader {
		log.Warn().Msg("header authentication enabled, trusting identity headers")
		return identity.HeaderAuthenticator{}, nil
	}
	return identity.NewJWTAuthenticator(ctx, identity.JWTOptions{
		JWKSURL:         cfg.AuthJWKSURL,
		Issuer:          cfg.AuthIssuer,
		Audience:        cfg.AuthAudience,
		RefreshInterval: cfg.AuthJWKSRefresh,
		ClockSkew:       cfg.AuthClockSkew,
	}, log)
}

func buildUploader(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage.Uploader, error) {
	if !cfg.UploadsEnabled() {
		log.Info().Msg("object storage not configured, uploads disabled")
		return storage.NewUploader(nil, "", cfg.UploadMaxBytes, cfg.S3PresignTTL), nil
	}

	presigner, err := storage.NewS3Presigner(ctx, storage.S3Config{
		Endpoint:     cfg.S3Endpoint,
		Region:       cfg.S3Region,
		Bucket:       cfg.S3Bucket,
		AccessKeyID:  cfg.S3AccessKeyID,
		SecretKey:    cfg.S3SecretKey,
		UsePathStyle: cfg.S3UsePathStyle,
	}, log)
	if err != nil {
		return nil, err
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := presigner.Health(checkCtx); err != nil {
		log.Warn().Err(err).Str("bucket", cfg.S3Bucket).Msg("object storage bucket not reachable, presigned uploads may fail")
	}

	publicBase := cfg.S3PublicBaseURL
	if publicBase == "" {
		publicBase = cfg.S3Endpoint + "/" + cfg.S3Bucket
	}
	return storage.NewUploader(presigner, publicBase, cfg.UploadMaxBytes, cfg.S3PresignTTL), nil
}

func buildAgent(cfg *config.Config, store repositories.Store, log zerolog.Logger) *research.Agent {
	searcher := research.NewWebSearcher(research.WebSearcherConfig{
		BaseURL: cfg.SearchBaseURL,
		APIKey:  cfg.SearchAPIKey,
		Timeout: cfg.SearchTimeout,
	}, log)

	var completer research.Completer
	if cfg.LLMAPIKey != "" {
		completer = research.NewOpenAICompleter(research.OpenAIConfig{
			BaseURL:     cfg.LLMBaseURL,
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout,
		})
	} else {
		log.Warn().Msg("LLM_API_KEY not set, research answers are extractive only")
	}
	return research.NewAgent(searcher, completer, store.Transcripts, log)
}
