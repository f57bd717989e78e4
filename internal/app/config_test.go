package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphersync/internal/app"
	"ciphersync/internal/domain"
)

func envOf(m map[string]string) app.Env {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := app.LoadConfigFromEnv(envOf(nil))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Home)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Retry.MaxAttempts)
	assert.Positive(t, cfg.Sync.ChunkSize)
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	cfg, err := app.LoadConfigFromEnv(envOf(map[string]string{
		"CIPHERSYNC_HOME":               "/tmp/cs",
		"CIPHERSYNC_RELAY":              "http://127.0.0.1:8080",
		"CIPHERSYNC_LOG_LEVEL":          "debug",
		"CIPHERSYNC_IN_MEMORY":          "true",
		"CIPHERSYNC_CHUNK_SIZE":         "1024",
		"CIPHERSYNC_QUERY_MAX_ATTEMPTS": "3",
		"CIPHERSYNC_QUERY_BASE_DELAY":   "250ms",
		"CIPHERSYNC_WELLKNOWN_TTL":      "2h",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/cs", cfg.Home)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.RelayURL)
	assert.True(t, cfg.InMemory)
	assert.EqualValues(t, 1024, cfg.Sync.ChunkSize)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 2*time.Hour, cfg.WellKnown.DefaultTTL)
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"bad duration": {"CIPHERSYNC_QUERY_BASE_DELAY": "soon"},
		"bad number":   {"CIPHERSYNC_FETCH_LIMIT": "many"},
		"bad level":    {"CIPHERSYNC_LOG_LEVEL": "loud"},
		"relative url": {"CIPHERSYNC_RELAY": "relay.example"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := app.LoadConfigFromEnv(envOf(env))
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}
