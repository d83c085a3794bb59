package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/timottowitz/obelisk-backend/internal/provisioning/handler"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/migrator"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/registrar"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/repository"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/seeder"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/service"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/webhook"
	"github.com/timottowitz/obelisk-backend/pkg/config"
	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/httputil"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
	"github.com/timottowitz/obelisk-backend/pkg/messaging"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation("provisioning-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("provisioning-service", cfg.Server.Environment)
	log.Info().Msg("starting Provisioning Service")

	// The verifier is built before anything else touches the network: a
	// missing or malformed signing secret must stop the service here.
	verifier, err := webhook.NewVerifier(cfg.Webhook.SigningSecret, cfg.Webhook.Tolerance)
	if err != nil {
		log.Fatal().Err(err).Msg("webhook verifier misconfigured")
	}

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()

	// Bootstrap the public registry and sync embedded migration files into
	// the central store.
	if err := repository.EnsurePublicSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap public schema")
	}

	migrationFiles := repository.NewMigrationFileRepository(db)
	if err := migrationFiles.SyncEmbedded(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to sync embedded migrations")
	}

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeTenantEvents, "provisioning-service", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	tenantRepo := repository.NewTenantRepository(db)
	userRepo := repository.NewUserRepository(db)
	memberRepo := repository.NewMemberRepository(db)

	// Initialize the provisioning pipeline
	exposer, err := migrator.NewDataAPIReloader(db, cfg.DataAPI.ReloadChannel, log)
	if err != nil {
		log.Fatal().Err(err).Msg("data API reloader misconfigured")
	}

	reg := registrar.New(tenantRepo, userRepo, memberRepo, log)
	mig := migrator.New(db, migrationFiles, exposer, log)
	seed := seeder.New(db, log)
	provisioner := service.New(reg, mig, seed, publisher, log)

	// Initialize handlers
	webhookHandler := handler.NewWebhookHandler(verifier, provisioner, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "provisioning-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// Webhook routes. No session auth here: deliveries authenticate by
	// signature, not bearer token.
	r.Route("/api/v1", func(r chi.Router) {
		webhookHandler.RegisterRoutes(r)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
