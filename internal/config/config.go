package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`
	Port   string `env:"PORT" default:"5000"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" default:"localhost"`
	DBPort      string `env:"DB_PORT" default:"5432"`
	DBUser      string `env:"DB_USER"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME"`
	DBSSLMode   string `env:"DB_SSLMODE" default:"disable"`

	JWTSecret    string        `env:"JWT_SECRET"`
	JWTExpiresIn time.Duration `env:"JWT_EXPIRES_IN" default:"168h"` // 7 days

	CORSOrigin           string        `env:"CORS_ORIGIN" default:"http://localhost:3000"`
	RateLimitWindow      time.Duration `env:"RATE_LIMIT_WINDOW" default:"15m"`
	RateLimitMaxRequests int           `env:"RATE_LIMIT_MAX_REQUESTS" default:"100"`

	GoogleAIAPIKey string `env:"GOOGLE_AI_API_KEY"`
	GoogleAIModel  string `env:"GOOGLE_AI_MODEL" default:"gemini-2.5-flash"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) AIEnabled() bool {
	return c.GoogleAIAPIKey != ""
}

func validate(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" && (cfg.DBUser == "" || cfg.DBName == "") {
		return errors.New("DATABASE_URL or DB_USER and DB_NAME are required")
	}
	if cfg.JWTExpiresIn <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	if cfg.RateLimitWindow <= 0 || cfg.RateLimitMaxRequests <= 0 {
		return errors.New("RATE_LIMIT_WINDOW and RATE_LIMIT_MAX_REQUESTS must be positive")
	}
	return nil
}
