package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "  s3cret ")

	cfg := LoadConfig()

	assert.Equal(t, EnvProduction, cfg.Env)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 7100, cfg.ServerPort)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Auth.RejectBlocked)
	assert.Equal(t, "usd", cfg.Payments.Currency)
	assert.Equal(t, "none", cfg.MQ.Backend)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("AUTH_REJECT_BLOCKED", "true")
	t.Setenv("EMAIL_USER", "mailer@example.com")
	t.Setenv("MQ_BACKEND", "RabbitMQ")

	cfg := LoadConfig()

	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Auth.RejectBlocked)
	assert.Equal(t, "mailer@example.com", cfg.Mail.From)
	assert.Equal(t, "rabbitmq", cfg.MQ.Backend)
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("TOKEN_TTL", "forever")

	cfg := LoadConfig()

	assert.Equal(t, 7100, cfg.ServerPort)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
}

func TestValidateRequiresSecret(t *testing.T) {
	cfg := Config{Auth: AuthConfig{TokenTTL: time.Hour}}
	require.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "x"
	cfg.Auth.TokenTTL = 0
	require.Error(t, cfg.Validate())
}
