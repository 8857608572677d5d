package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chat-service/internal/config"
	"chat-service/internal/db"
	"chat-service/internal/jobs"
	"chat-service/internal/logger"
	"chat-service/internal/repositories"
)

func main() {
	root := &cobra.Command{
		Use:           "chat-service",
		Short:         "Conversations, read receipts, invitations and the research assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), pruneTranscriptsCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, websocket and gRPC health servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if cfg.StoreBackend != config.StoreBackendPostgres {
				return fmt.Errorf("migrate requires STORE_BACKEND=%s", config.StoreBackendPostgres)
			}
			database, err := db.Connect(cmd.Context(), cfg.DatabaseDSN, db.Options{MaxOpenConns: 2, MaxIdleConns: 1})
			if err != nil {
				return err
			}
			defer database.Close()
			return db.Migrate(database, log)
		},
	}
}

func pruneTranscriptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-transcripts",
		Short: "Delete research transcripts older than the retention window once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg, log, false)
			if err != nil {
				return err
			}
			defer closeStore()

			job := jobs.NewTranscriptCleanup(store.Transcripts, cfg.TranscriptRetention, cfg.TranscriptCleanupCron, log)
			_, err = job.PruneOnce(cmd.Context())
			return err
		},
	}
}

func bootstrap() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("configure logger: %w", err)
	}
	log = log.With().Str("service", cfg.ServiceName).Str("env", cfg.Environment).Logger()
	return cfg, log, nil
}

// openStore builds the configured store. migrate applies pending Postgres
// migrations first.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger, migrate bool) (repositories.Store, func(), error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return repositories.NewMemoryStore().Store(), func() {}, nil
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN, db.Options{MaxOpenConns: cfg.DBMaxOpen, MaxIdleConns: cfg.DBMaxIdle})
	if err != nil {
		return repositories.Store{}, nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	if migrate {
		if err := db.Migrate(database, log); err != nil {
			database.Close()
			return repositories.Store{}, nil, err
		}
	}
	return repositories.NewPostgresStore(database), func() { database.Close() }, nil
}
