package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stackit/stackit/backend/internal/ai"
	"github.com/stackit/stackit/backend/internal/auth"
	"github.com/stackit/stackit/backend/internal/config"
	"github.com/stackit/stackit/backend/internal/database"
	"github.com/stackit/stackit/backend/internal/handlers"
	"github.com/stackit/stackit/backend/internal/logging"
	"github.com/stackit/stackit/backend/internal/middleware"
	"github.com/stackit/stackit/backend/internal/server"
	"github.com/stackit/stackit/backend/internal/voting"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) database.Service {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.DSN(), logging.Logger)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	return db
}

// setupAI returns a service that reports itself unavailable when no API
// key is configured.
func setupAI(ctx context.Context, cfg *config.Config) (*ai.Service, func()) {
	if !cfg.AIEnabled() {
		slog.Warn("GOOGLE_AI_API_KEY not set, AI endpoints disabled")
		return ai.NewService(nil, logging.Logger), func() {}
	}

	gemini, err := ai.NewGemini(ctx, cfg.GoogleAIAPIKey, cfg.GoogleAIModel)
	if err != nil {
		slog.Error("Failed to create AI client", "error", err)
		os.Exit(1)
	}
	slog.Info("AI service enabled", "model", cfg.GoogleAIModel)

	return ai.NewService(gemini, logging.Logger), func() {
		if err := gemini.Close(); err != nil {
			slog.Error("Failed to close AI client", "error", err)
		}
	}
}

func runGracefulShutdown(srv *http.Server, stopBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopBackground()
		close(done)
	}()

	return done
}

func main() {
	cfg := setupConfig()
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := setupDB(cfg)
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()
	gormDB := db.GetDB()

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiresIn, nil)
	authn := auth.NewAuthenticator(tokens, auth.NewGormUsers(gormDB))
	votes := voting.NewService(voting.NewGormLedger(gormDB), voting.NewGormTargets(gormDB), logging.Logger)

	aiSvc, closeAI := setupAI(ctx, cfg)
	defer closeAI()

	limiter := middleware.NewRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMaxRequests)
	go limiter.Run(ctx)

	h := handlers.NewHandler(handlers.Deps{
		DB:     gormDB,
		Tokens: tokens,
		Votes:  votes,
		AI:     aiSvc,
		Log:    logging.Logger,
	})

	srv := server.New(cfg, db, h, authn, limiter, logging.Logger).HTTPServer()
	done := runGracefulShutdown(srv, cancel)

	slog.Info("Server starting", "port", cfg.Port, "environment", cfg.AppEnv)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Server stopped")
}
