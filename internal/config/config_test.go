package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_USER", "stackit")
	t.Setenv("DB_NAME", "stackit")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, 168*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 100, cfg.RateLimitMaxRequests)
	assert.Equal(t, "gemini-2.5-flash", cfg.GoogleAIModel)
	assert.False(t, cfg.AIEnabled())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_USER", "stackit")
	t.Setenv("DB_NAME", "stackit")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_MissingDatabase(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	require.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: "5433", DBUser: "u", DBPassword: "p", DBName: "n", DBSSLMode: "disable",
	}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5433 sslmode=disable TimeZone=UTC", cfg.DSN())

	cfg.DatabaseURL = "postgres://u:p@db:5433/n"
	assert.Equal(t, "postgres://u:p@db:5433/n", cfg.DSN())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "8080")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "5")
	t.Setenv("GOOGLE_AI_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5, cfg.RateLimitMaxRequests)
	assert.True(t, cfg.AIEnabled())
}
