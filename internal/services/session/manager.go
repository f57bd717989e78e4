package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ciphersync/internal/domain"
	"ciphersync/internal/metrics"
)

// Manager opens sessions against one transactional store.
type Manager struct {
	store   domain.TxnStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewManager returns a Manager over store. logger and m may be nil.
func NewManager(store domain.TxnStore, logger *zap.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		logger:  logger.With(zap.String("module", "session")),
		metrics: m,
	}
}

// Open begins a transaction and binds it to the given delegates and
// listeners. The identity delegate is required; everything else may be nil.
func (m *Manager) Open(ctx context.Context, d domain.Delegates, l domain.Listeners) (*Session, error) {
	if d.Identity == nil {
		return nil, fmt.Errorf("%w: identity delegate is required", domain.ErrConfiguration)
	}
	if m.store == nil {
		return nil, fmt.Errorf("%w: no store", domain.ErrConfiguration)
	}
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", domain.ErrPersistence, err)
	}
	return &Session{
		ctx:       ctx,
		tx:        tx,
		delegates: d,
		listeners: l,
		logger:    m.logger,
		metrics:   m.metrics,
	}, nil
}

// Run opens a session, calls fn and closes it. An error from fn discards the
// session and is returned unchanged; otherwise the Close error is returned.
func (m *Manager) Run(
	ctx context.Context,
	d domain.Delegates,
	l domain.Listeners,
	fn func(*Session) error,
) error {
	sess, err := m.Open(ctx, d, l)
	if err != nil {
		return err
	}
	if err := fn(sess); err != nil {
		sess.Discard()
		return err
	}
	return sess.Close()
}

// View runs fn inside a transaction that is always rolled back.
func (m *Manager) View(ctx context.Context, fn func(tx domain.Txn) error) error {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", domain.ErrPersistence, err)
	}
	defer tx.Discard()
	return fn(tx)
}
