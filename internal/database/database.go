package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stackit/stackit/backend/internal/logging"
	"github.com/stackit/stackit/backend/internal/models"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health(ctx context.Context) map[string]string

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error
	GetDB() *gorm.DB
}

type service struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open connects to postgres, migrates the schema and seeds the AI user.
// The handle is meant to be opened once and passed to every consumer.
func Open(ctx context.Context, dsn string, log *slog.Logger) (Service, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logging.NewGormLogger(log, time.Second),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	log.Info("database connected")

	if err := Migrate(db.WithContext(ctx)); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	log.Info("database migrations completed")

	if err := EnsureAIUser(db.WithContext(ctx)); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &service{db: db, log: log}, nil
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Tag{},
		&models.Question{},
		&models.Answer{},
		&models.Vote{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// EnsureAIUser creates the account that authors AI answers if it is missing.
// It has an unusable password so nobody can log in as it.
func EnsureAIUser(db *gorm.DB) error {
	var user models.User
	err := db.Where("email = ?", models.AIUserEmail).First(&user).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("look up AI user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(fmt.Sprintf("disabled-%d", time.Now().UnixNano())), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash AI user password: %w", err)
	}

	user = models.User{
		Email:     models.AIUserEmail,
		FirstName: "StackIt",
		LastName:  "AI",
		Password:  string(hash),
		Role:      models.RoleUser,
	}
	if err := db.Create(&user).Error; err != nil && !IsUniqueViolation(err) {
		return fmt.Errorf("create AI user: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *service) GetDB() *gorm.DB {
	return s.db
}

// Health checks the health of the database connection by pinging the database.
func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats := make(map[string]string)

	sqlDB, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db error: %v", err)
		return stats
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := sqlDB.Stats()
	stats["open_connections"] = fmt.Sprintf("%d", dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprintf("%d", dbStats.InUse)
	stats["idle"] = fmt.Sprintf("%d", dbStats.Idle)

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	s.log.Info("disconnected from database")
	return sqlDB.Close()
}
