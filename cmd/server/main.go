package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/overlay-relay/internal/bolt"
	"github.com/overlay-relay/internal/config"
	"github.com/overlay-relay/internal/handler"
	"github.com/overlay-relay/internal/kafka"
	"github.com/overlay-relay/internal/leaderboard"
	"github.com/overlay-relay/internal/postgres"
	"github.com/overlay-relay/internal/redis"
	"github.com/overlay-relay/internal/service"
	"github.com/overlay-relay/internal/worker"
)

// stateStore is a StateStore that owns a connection
type stateStore interface {
	service.StateStore
	Close() error
}

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Local .env files are optional
	_ = godotenv.Load()

	// Load configuration
	cfg, loadErr := config.Load(*configPath)
	if loadErr != nil {
		cfg = config.DefaultConfig()
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if loadErr != nil {
		logger.Warn("failed to load config file, using defaults", "error", loadErr)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()

	// Initialize the overlay state store
	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("failed to open state store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	overlayService := service.NewOverlayService(store, &cfg.Store, &cfg.Overlay, clock, logger)

	// Initialize PostgreSQL history
	var retentionJob *worker.RetentionJob
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		historyRepo, err := postgres.NewHistoryRepository(&cfg.Postgres, logger)
		if err != nil {
			logger.Warn("failed to connect to PostgreSQL, continuing without history", "error", err)
		} else if err := historyRepo.RunMigrations(ctx); err != nil {
			logger.Warn("failed to run migrations, continuing without history", "error", err)
			historyRepo.Close()
		} else {
			defer historyRepo.Close()
			overlayService.AddRecorder(historyRepo)
			overlayService.SetHistory(historyRepo)
			logger.Info("overlay history enabled")

			if cfg.Retention.Enabled {
				retentionJob, err = worker.NewRetentionJob(historyRepo, &cfg.Retention, clock, logger)
				if err != nil {
					logger.Error("failed to create retention job", "error", err)
					os.Exit(1)
				}
				retentionJob.Start()
			}
		}
	}

	// Initialize Kafka publisher for overlay change events
	var publisher *kafka.EventPublisher
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka publisher",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		publisher, err = kafka.NewEventPublisher(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka publisher, continuing without Kafka", "error", err)
			publisher = nil
		} else {
			overlayService.AddRecorder(publisher)
			logger.Info("Kafka publisher started successfully")
		}
	}

	// Initialize leaderboard lookup
	lookupService := service.NewLookupService(
		leaderboard.NewClient(&cfg.Leaderboard),
		&cfg.Leaderboard,
		clock,
		logger,
	)

	httpHandler := handler.NewHandler(overlayService, lookupService, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "store", cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	// Drain queued overlay events before closing their sinks
	overlayService.Close()

	// Stop retention job
	if retentionJob != nil {
		retentionJob.Stop()
	}

	// Stop Kafka publisher
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to stop Kafka publisher", "error", err)
		}
	}

	logger.Info("server stopped")
}

// openStore connects the configured state backend
func openStore(cfg *config.Config, logger *slog.Logger) (stateStore, error) {
	switch cfg.Store.Backend {
	case config.BackendBolt:
		return bolt.NewStateStore(&cfg.Bolt, logger)
	default:
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		return redis.NewStateStore(&cfg.Redis, logger)
	}
}
