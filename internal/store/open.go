package store

import (
	"go.uber.org/zap"

	"ciphersync/internal/domain"
)

// Options selects and configures the transactional backend.
type Options struct {
	// PostgresDSN, when set, selects PostgreSQL over the embedded store.
	PostgresDSN string
	// Dir is the badger data directory.
	Dir      string
	InMemory bool
	Logger   *zap.Logger
}

// Open returns the configured domain.TxnStore.
func Open(opts Options) (domain.TxnStore, error) {
	if opts.PostgresDSN != "" {
		return NewPostgres(opts.PostgresDSN)
	}
	return OpenBadger(BadgerOptions{
		Dir:        opts.Dir,
		InMemory:   opts.InMemory,
		SyncWrites: true,
		Logger:     opts.Logger,
	})
}
