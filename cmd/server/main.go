package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/CalosDev/aquitado-ops/internal/api"
	"github.com/CalosDev/aquitado-ops/internal/concierge"
	"github.com/CalosDev/aquitado-ops/internal/config"
	"github.com/CalosDev/aquitado-ops/internal/engine"
	"github.com/CalosDev/aquitado-ops/internal/health"
	"github.com/CalosDev/aquitado-ops/internal/ops"
	"github.com/CalosDev/aquitado-ops/internal/reconciler"
	"github.com/CalosDev/aquitado-ops/internal/store"
	"github.com/CalosDev/aquitado-ops/internal/whatsapp"
	ws "github.com/CalosDev/aquitado-ops/internal/websocket"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	// Observability primitives
	tracker := health.NewTracker()
	breaker := engine.NewCircuitBreaker(logger, cfg.BreakerFailureThreshold, cfg.BreakerCooldown)
	limiter := engine.NewReplyLimiter(redisStore.Client(), logger, cfg.ReplyRateLimit, cfg.ReplyRateWindow)

	// Outbound provider gateway
	gateway := whatsapp.NewGateway(whatsapp.Config{
		Enabled:       cfg.WhatsAppEnabled,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		AccessToken:   cfg.WhatsAppAccessToken,
		APIVersion:    cfg.WhatsAppAPIVersion,
		BaseURL:       cfg.WhatsAppBaseURL,
	}, tracker, logger)

	// Reply generation
	autoReplier := concierge.NewOpenAIReplier(cfg.OpenAIAPIKey, cfg.OpenAIModel, breaker, tracker, logger)
	directory := concierge.NewDirectory(pgStore, tracker, logger, "")

	// WebSocket hub for the live activity feed
	hub := ws.NewHub(logger)
	go hub.Run()

	rec := reconciler.New(reconciler.Deps{
		Businesses:    pgStore,
		Conversations: pgStore,
		Messages:      pgStore,
		Events:        pgStore,
		Dedup:         redisStore,
		Sender:        gateway,
		AutoReplier:   autoReplier,
		Concierge:     directory,
		Limiter:       limiter,
		Broadcaster:   hub,
	}, logger)

	composer := ops.NewComposer(pgStore, tracker, breaker, ops.Config{
		Thresholds:        cfg.LatencyThresholdsMs,
		PoolDegradedRatio: cfg.PoolDegradedRatio,
		PoolDownRatio:     cfg.PoolDownRatio,
	}, logger)

	// Setup router
	router := api.NewRouter(rec, pgStore, composer, hub, cfg.WebhookVerifyToken, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
