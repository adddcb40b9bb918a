package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "identity-service", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, "memory", cfg.Events.Transport)
	assert.Equal(t, 15*time.Minute, cfg.Auth.LoginTokenTTL)
	assert.Equal(t, "@every 10m", cfg.Sweep.Schedule)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EVENTS_TRANSPORT", "amqp")
	t.Setenv("AUTH_PASSWORD_RESET_TOKEN_TTL", "2h")
	t.Setenv("POSTGRES_MAX_CONNS", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "amqp", cfg.Events.Transport)
	assert.Equal(t, 2*time.Hour, cfg.Auth.PasswordResetTokenTTL)
	assert.EqualValues(t, 25, cfg.Postgres.MaxConns)
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	t.Setenv("EVENTS_TRANSPORT", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
}

func TestRequestTimeoutDisabled(t *testing.T) {
	assert.Zero(t, AppConfig{RequestTimeoutSeconds: 0}.RequestTimeout())
}
