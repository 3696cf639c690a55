package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caotun-spin-backend/internal/config"
	"caotun-spin-backend/internal/handlers"
	"caotun-spin-backend/internal/repository"
	"caotun-spin-backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func Run() {
	configPath := os.Getenv("CAOTUN_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize repositories
	stores := repository.NewMemoryStores()
	var db handlers.Pinger
	if cfg.Database.Driver == "postgres" {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()

		// Test database connection
		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping database")
		}
		log.Info().Msg("Database connection established")

		stores = repository.NewPostgresStores(pool)
		db = pool
	} else {
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
	}

	var presigner services.ImagePresigner
	if cfg.AWS.S3Bucket != "" {
		s3Presigner, err := services.NewS3Presigner(ctx, cfg.AWS)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		presigner = s3Presigner
	}

	var notifier services.MealPeriodNotifier
	if cfg.APNs.Enabled() {
		pushNotifier, err := services.NewPushNotifier(cfg.APNs, stores.Users)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create push notifier")
		}
		notifier = pushNotifier
	}

	a, err := newApp(cfg, stores, db, presigner, notifier, time.Now)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		a.hub.Run(hubCtx)
	}()

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      h2c.NewHandler(a.router, &http2.Server{}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("storage", cfg.Database.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Close WebSocket connections before the server stops accepting
	stopHub()
	<-hubDone

	// Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
