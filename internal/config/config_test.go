package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	viper.Set("auth.jwks_url", "https://auth.example.com/.well-known/jwks.json")
	defer viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "ep_session", cfg.Session.CookieName)
	assert.Equal(t, 120*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, float64(60), cfg.RateLimit.Capacity)
	assert.Equal(t, float64(1), cfg.RateLimit.RefillPerSec)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadRequiresProvider(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwks_url")
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	viper.Set("auth.endpoint", "https://idp.internal:9443")
	viper.Set("server.port", 9090)
	viper.Set("rate_limit.backend", "redis")
	viper.Set("session.secure", true)
	defer viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.True(t, cfg.Session.Secure)
	assert.Equal(t, "https://idp.internal:9443", cfg.Auth.Endpoint)
}
