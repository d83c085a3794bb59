package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/timottowitz/obelisk-backend/internal/cases/consumers"
	"github.com/timottowitz/obelisk-backend/internal/cases/events"
	"github.com/timottowitz/obelisk-backend/internal/cases/handler"
	"github.com/timottowitz/obelisk-backend/internal/cases/repository"
	"github.com/timottowitz/obelisk-backend/internal/cases/service"
	provrepo "github.com/timottowitz/obelisk-backend/internal/provisioning/repository"
	"github.com/timottowitz/obelisk-backend/pkg/config"
	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/httputil"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
	"github.com/timottowitz/obelisk-backend/pkg/messaging"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation("case-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("case-service", cfg.Server.Environment)
	log.Info().Msg("starting Case Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeCaseEvents, "case-service", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	casePublisher := events.NewPublisher(publisher, log)

	// Initialize repositories. The tenant registry repository doubles as
	// the session middleware's org-to-schema resolver.
	tenantRepo := provrepo.NewTenantRepository(db)
	caseRepo := repository.NewCaseRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	// Initialize services
	caseService := service.NewCaseService(caseRepo, casePublisher, log)
	taskService := service.NewTaskService(taskRepo, caseRepo, casePublisher, log)

	// Initialize handlers
	caseHandler := handler.NewCaseHandler(caseService, log)
	taskHandler := handler.NewTaskHandler(taskService, log)

	// Start tenant event consumer
	tenantConsumer, err := consumers.NewTenantEventConsumer(rmq, db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create tenant event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tenantConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start tenant event consumer")
	}

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "http://localhost:3000" || origin == "http://localhost:5173" {
				return true
			}
			// Tenant subdomains in development, e.g. http://acme.localhost:3000
			if strings.HasSuffix(origin, ".localhost:3000") {
				return true
			}
			return strings.HasSuffix(origin, ".obelisk.legal")
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no session required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "case-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes (session + resolved tenant required)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.SessionAuth(cfg.Session.Secret, tenantRepo))
		caseHandler.RegisterRoutes(r)
		taskHandler.RegisterRoutes(r)
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

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
