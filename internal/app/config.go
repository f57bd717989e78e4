package app

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ciphersync/internal/domain"
	"ciphersync/internal/logging"
	"ciphersync/internal/services/inboxsync"
	"ciphersync/internal/services/query"
	"ciphersync/internal/services/wellknown"
)

// Env looks up one environment variable, like os.LookupEnv.
type Env func(key string) (string, bool)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home        string // data directory, e.g. $HOME/.ciphersync
	RelayURL    string // relay base URL; empty uses the identity's server
	PostgresDSN string // selects PostgreSQL instead of the embedded store
	InMemory    bool   // keeps the embedded store in memory

	Log       logging.Config
	Sync      inboxsync.Options
	Retry     query.RetryPolicy
	WellKnown wellknown.Options

	HTTP *http.Client // optional; defaults to http.DefaultClient
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	home := ".ciphersync"
	if dir, err := os.UserHomeDir(); err == nil {
		home = filepath.Join(dir, ".ciphersync")
	}
	return Config{
		Home:  home,
		Log:   logging.Config{Level: "info", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		Sync:  inboxsync.DefaultOptions,
		Retry: query.DefaultRetryPolicy,
	}
}

// LoadConfigFromEnv overlays CIPHERSYNC_* variables on DefaultConfig.
func LoadConfigFromEnv(env Env) (Config, error) {
	if env == nil {
		env = os.LookupEnv
	}
	cfg := DefaultConfig()
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := env(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := env(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := env(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := env(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("CIPHERSYNC_HOME", &cfg.Home)
	str("CIPHERSYNC_RELAY", &cfg.RelayURL)
	str("CIPHERSYNC_POSTGRES_DSN", &cfg.PostgresDSN)
	boolean("CIPHERSYNC_IN_MEMORY", &cfg.InMemory)
	str("CIPHERSYNC_LOG_LEVEL", &cfg.Log.Level)
	str("CIPHERSYNC_LOG_FILE", &cfg.Log.File)
	num("CIPHERSYNC_LOG_MAX_SIZE_MB", &cfg.Log.MaxSizeMB)
	num("CIPHERSYNC_FETCH_LIMIT", &cfg.Sync.FetchLimit)
	chunk := int(cfg.Sync.ChunkSize)
	num("CIPHERSYNC_CHUNK_SIZE", &chunk)
	cfg.Sync.ChunkSize = int64(chunk)
	num("CIPHERSYNC_QUERY_MAX_ATTEMPTS", &cfg.Retry.MaxAttempts)
	dur("CIPHERSYNC_QUERY_BASE_DELAY", &cfg.Retry.BaseDelay)
	dur("CIPHERSYNC_QUERY_MAX_DELAY", &cfg.Retry.MaxDelay)
	dur("CIPHERSYNC_WELLKNOWN_TTL", &cfg.WellKnown.DefaultTTL)
	dur("CIPHERSYNC_WELLKNOWN_RETRY", &cfg.WellKnown.RetryInterval)

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.Home == "" {
		errs = append(errs, errors.New("home directory is empty"))
	}
	if c.RelayURL != "" {
		if u, err := url.Parse(c.RelayURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("relay url %q is not absolute", c.RelayURL))
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Sync.FetchLimit < 0 || c.Sync.ChunkSize < 0 {
		errs = append(errs, errors.New("fetch limit and chunk size must not be negative"))
	}
	if c.Retry.MaxAttempts < 0 || c.Retry.BaseDelay < 0 {
		errs = append(errs, errors.New("query retry policy must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return nil
}
