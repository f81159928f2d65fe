// Package dbtest starts a throwaway postgres for integration tests.
package dbtest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/stackit/stackit/backend/internal/database"
)

// Postgres is a running container plus an open, migrated database handle.
type Postgres struct {
	Container *postgres.PostgresContainer
	DSN       string
	DB        database.Service
}

// Start runs postgres in a container and opens it through database.Open.
func Start(ctx context.Context) (*Postgres, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("stackit"),
		postgres.WithUsername("stackit"),
		postgres.WithPassword("stackit"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	db, err := database.Open(ctx, dsn, log)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &Postgres{Container: container, DSN: dsn, DB: db}, nil
}

// Stop closes the handle and removes the container.
func (p *Postgres) Stop(ctx context.Context) {
	if err := p.DB.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v\n", err)
	}
	if err := p.Container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to terminate postgres container: %v\n", err)
	}
}

// Reset empties all tables and re-seeds the AI user.
func Reset(t *testing.T, db *gorm.DB) {
	t.Helper()

	err := db.Exec("TRUNCATE votes, answers, question_tags, questions, tags, users RESTART IDENTITY CASCADE").Error
	require.NoError(t, err)
	require.NoError(t, database.EnsureAIUser(db))
}
