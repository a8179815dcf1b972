// Clarity Engine - reflective session API server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/stillroom/clarity-engine/internal/api"
	"github.com/stillroom/clarity-engine/internal/billing"
	"github.com/stillroom/clarity-engine/internal/clarify"
	"github.com/stillroom/clarity-engine/internal/config"
	"github.com/stillroom/clarity-engine/internal/middleware"
	"github.com/stillroom/clarity-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "store", cfg.StoreDriver, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	var repo store.Repository
	switch cfg.StoreDriver {
	case config.DriverSupabase:
		repo, err = store.NewSupabase(store.SupabaseConfig{
			URL:        cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseServiceKey,
		})
	default:
		repo, err = store.NewSQLite(cfg.DBPath)
	}
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		// The pipeline fails open on store reads; a cold store at boot is
		// worth a warning, not a refusal to start.
		slog.Warn("Store health check failed", "error", err)
	} else {
		slog.Info("Store connected")
	}

	systemPrompt, err := clarify.LoadSystemPrompt(cfg.PromptPath)
	if err != nil {
		slog.Error("Failed to load system prompt", "error", err)
		os.Exit(1)
	}

	generator := clarify.NewOpenAIGenerator(cfg.OpenAIKey)

	svc := clarify.NewService(repo, generator, clarify.Options{
		SystemPrompt:   systemPrompt,
		FreeModel:      cfg.FreeModel,
		ProModel:       cfg.ProModel,
		FreeDailyLimit: cfg.FreeDailyLimit,
		HistoryLimit:   cfg.HistoryLimit,
		GenTimeout:     cfg.GenTimeout,
		StoreTimeout:   cfg.StoreTimeout,
	})

	// Initialize handlers.
	baseHandler := api.NewHandler(svc, repo)
	clarifyHandler := api.NewClarifyHandler(baseHandler)
	healthHandler := api.NewHealthHandler(baseHandler)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	corsOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		corsOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(corsOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	clarifyHandler.RegisterRoutes(r)

	// Billing routes (only if Stripe is configured).
	if cfg.BillingEnabled() {
		billingHandler := billing.NewHandler(repo, cfg.Stripe)
		billingHandler.RegisterRoutes(r)
		slog.Info("Billing endpoints enabled")
	} else {
		slog.Info("Billing endpoints disabled (STRIPE_SECRET_KEY not set)")
	}

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.GenTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}
