package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fluentprep/fluentprep/internal/cache"
	"github.com/fluentprep/fluentprep/internal/config"
	"github.com/fluentprep/fluentprep/internal/database"
	"github.com/fluentprep/fluentprep/internal/logging"
	"github.com/fluentprep/fluentprep/internal/monitoring"
	"github.com/fluentprep/fluentprep/internal/providers"
	"github.com/fluentprep/fluentprep/internal/quota"
	"github.com/fluentprep/fluentprep/internal/server"
	"github.com/fluentprep/fluentprep/migrations"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	// Initialize structured logging
	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Str("quota_backend", cfg.Quota.Backend).
		Msg("Starting fluentprep API server")

	// Initialize database connection
	db, err := database.New(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(cfg.Database.URL, migrations.FS, "."); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	// Select the quota store backend
	store, closeStore, err := newQuotaStore(cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize quota store")
	}
	defer closeStore()

	engine := quota.NewEngine(store, cfg.Quota.StoreTimeout)

	// Provider clients share one HTTP client and circuit breaker set
	client := providers.NewClient(&cfg.Providers)
	ai := server.AIProviders{
		Chat:       providers.NewGemini(client, cfg.Providers.GeminiKey),
		Completion: providers.NewDeepSeek(client, cfg.Providers.DeepSeekKey),
		Speech:     providers.NewAssemblyAI(client, cfg.Providers.AssemblyAIKey),
		TTS:        providers.NewGoogleTTS(client, cfg.Providers.GoogleTTSKey),
	}

	// Initialize Prometheus metrics
	monitoring.Init()
	log.Info().Msg("Prometheus metrics initialized")

	// Start metrics server if enabled
	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg.Monitoring.PrometheusPort)
	}

	// Create and start server
	srv := server.NewAPIServer(cfg, db.Pool, engine, ai)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().
		Str("signal", sig.String()).
		Msg("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

// newQuotaStore builds the configured quota store. The returned close
// function releases any backend-specific resources.
func newQuotaStore(cfg *config.Config, db *database.DB) (quota.Store, func(), error) {
	switch cfg.Quota.Backend {
	case "redis":
		redis, err := cache.New(cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return quota.NewRedisStore(redis), func() { redis.Close() }, nil
	case "memory":
		return quota.NewMemoryStore(), func() {}, nil
	default:
		return quota.NewPostgresStore(db.Pool), func() {}, nil
	}
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().
		Int("port", port).
		Msg("Prometheus metrics server listening")

	if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server error")
	}
}
