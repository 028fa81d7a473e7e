package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"trustline/internal/database/boltstore"
	"trustline/internal/database/sqlitestore"
	"trustline/internal/directory"
	"trustline/internal/handlers"
	"trustline/internal/metrics"
	"trustline/internal/moderation"
	"trustline/internal/recovery"
	"trustline/internal/routing"
	"trustline/internal/tracing"
)

func main() {
	// Configure zerolog
	// Set log level from environment (default: info)
	logLevel := os.Getenv("LOG_LEVEL")
	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Use pretty console logging in development, JSON in production
	if os.Getenv("LOG_FORMAT") == "json" {
		// Production: JSON logs
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Development: pretty console logs
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	log.Info().Msg("Starting Trustline moderation engine")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize tracing (optional; failures are logged, not fatal)
	if tp, err := tracing.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("Tracing disabled: failed to initialize exporter")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shut down tracer provider")
			}
		}()
	}

	// Get port from env or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "18920"
	}

	// Initialize BoltDB store
	dbPath := os.Getenv("TRUSTLINE_DB_PATH")
	if dbPath == "" {
		// Default to XDG data directory or home directory for development
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to get home directory")
			}
			dataDir = filepath.Join(home, ".local", "share")
		}
		dbPath = filepath.Join(dataDir, "trustline", "trustline.db")
	}

	store, err := boltstore.Open(boltstore.Options{
		Path: dbPath,
	})
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open database")
	}
	defer store.Close()

	log.Info().Str("path", dbPath).Msg("Database opened")

	// Reports and the audit log can live in SQLite instead of bolt when a
	// DSN is configured; everything else stays in the bolt file.
	var moderationStore moderation.Store = store.ModerationStore()
	if dsn := os.Getenv("TRUSTLINE_SQLITE_DSN"); dsn != "" {
		db, err := sqlitestore.Open(ctx, dsn)
		if err != nil {
			log.Fatal().Err(err).Str("dsn", dsn).Msg("Failed to open SQLite database")
		}
		defer db.Close()
		moderationStore = sqlitestore.NewModerationStore(db)
		log.Info().Str("dsn", dsn).Msg("Using SQLite moderation store")
	}

	// Directory service with staff roles from config
	staffConfigPath := os.Getenv("TRUSTLINE_STAFF_CONFIG")
	dir, err := directory.NewService(staffConfigPath, store.DirectoryStore())
	if err != nil {
		log.Fatal().Err(err).Str("path", staffConfigPath).Msg("Failed to load staff config")
	}

	// Content collaborators and the recovery service
	projects := store.ProjectStore()
	comments := store.CommentStore()
	chats := store.ChatStore()

	recoveryService := recovery.NewService(store.RecoveryStore(), map[recovery.Kind]recovery.Reinserter{
		recovery.KindProject: projects,
		recovery.KindMessage: comments,
		recovery.KindChat:    chats,
	})

	// Moderation engine wiring
	lifecycle := moderation.NewLifecycle(moderationStore)
	dispatcher := moderation.NewDispatcher(moderationStore, lifecycle, recoveryService, dir,
		map[moderation.TargetType]moderation.ContentStore{
			moderation.TargetProject: projects,
			moderation.TargetComment: comments,
			moderation.TargetChat:    chats,
		})

	h := handlers.NewHandler(moderationStore, dispatcher, recoveryService, dir)

	// Setup router with middleware
	handler := routing.SetupRouter(routing.Config{
		Handlers: h,
		Logger:   log.Logger,
	})

	// Background gauge collection
	metrics.StartCollector(ctx, metrics.StatsSource{
		PendingReports:     reportCounter(ctx, moderationStore, moderation.StatusPending),
		ReviewedReports:    reportCounter(ctx, moderationStore, moderation.StatusReviewed),
		SoftDeletedRecords: func() int { n, _ := recoveryService.Count(ctx); return n },
	}, time.Minute)

	sweepInterval := time.Hour
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatal().Err(err).Str("value", v).Msg("Invalid SWEEP_INTERVAL")
		}
		sweepInterval = d
	}

	server := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("address", server.Addr).
			Str("database", dbPath).
			Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := recoveryService.RunSweeper(gctx, sweepInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Shutdown complete")
}

// reportCounter returns a gauge source that counts reports in one status.
func reportCounter(ctx context.Context, store moderation.Store, status moderation.Status) func() int {
	return func() int {
		reports, err := store.ListReports(ctx, moderation.ReportFilter{Status: status})
		if err != nil {
			return 0
		}
		return len(reports)
	}
}
