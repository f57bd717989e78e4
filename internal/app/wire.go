package app

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"ciphersync/internal/domain"
	"ciphersync/internal/logging"
	"ciphersync/internal/metrics"
	"ciphersync/internal/notify"
	"ciphersync/internal/relay"
	identitysvc "ciphersync/internal/services/identity"
	inboxsvc "ciphersync/internal/services/inbox"
	"ciphersync/internal/services/inboxsync"
	pushsvc "ciphersync/internal/services/push"
	querysvc "ciphersync/internal/services/query"
	sessionsvc "ciphersync/internal/services/session"
	"ciphersync/internal/services/wellknown"
	"ciphersync/internal/store"
)

// Wire bundles the stores and services that need no unlocked identity.
type Wire struct {
	Config   Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Bus      *notify.Bus

	IdentityStore *store.IdentityFileStore
	Identity      *identitysvc.Service
	Store         domain.TxnStore
	Sessions      *sessionsvc.Manager
	Inbox         *inboxsvc.Service
	Ledger        *querysvc.Ledger
	Push          *pushsvc.Service
	HTTP          *http.Client
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("%w: logger: %w", domain.ErrConfiguration, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	txns, err := store.Open(store.Options{
		PostgresDSN: cfg.PostgresDSN,
		Dir:         filepath.Join(cfg.Home, "db"),
		InMemory:    cfg.InMemory,
		Logger:      logger,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("%w: open store: %w", domain.ErrPersistence, err)
	}

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	identityStore := store.NewIdentityFileStore(cfg.Home)
	return &Wire{
		Config:        cfg,
		Logger:        logger,
		Registry:      reg,
		Metrics:       m,
		Bus:           notify.NewBus(logger),
		IdentityStore: identityStore,
		Identity:      identitysvc.New(identityStore),
		Store:         txns,
		Sessions:      sessionsvc.NewManager(txns, logger, m),
		Inbox:         inboxsvc.New(store.NewInboxKVStore(), logger, m),
		Ledger:        querysvc.NewLedger(store.NewQueryKVStore(), logger, m),
		Push:          pushsvc.New(store.NewPushKVStore(), logger),
		HTTP:          httpClient,
	}, nil
}

// Close releases the store and flushes the logger.
func (w *Wire) Close() error {
	err := w.Store.Close()
	_ = w.Logger.Sync()
	return err
}

// Engine binds an unlocked identity to the relay-facing components.
type Engine struct {
	*Wire
	Unlocked   *identitysvc.Unlocked
	Server     domain.ServerURL
	Relay      *relay.HTTP
	Tokens     *relay.TokenSource
	Delegates  domain.Delegates
	Listeners  domain.Listeners
	Syncer     *inboxsync.Syncer
	Dispatcher *querysvc.Dispatcher
	Registrar  *pushsvc.Registrar
	WellKnown  *wellknown.Cache
}

// ErrNoRelay is returned when neither the configuration nor the identity
// names a relay.
var ErrNoRelay = errors.New("no relay configured; pass --relay or set CIPHERSYNC_RELAY")

// Unlock decrypts the identity and wires the engine around it. Listeners in
// l receive committed events of every session the engine opens.
func (w *Wire) Unlock(passphrase string, l domain.Listeners) (*Engine, error) {
	u, err := w.Identity.Unlock(passphrase)
	if err != nil {
		return nil, err
	}
	return w.Bind(u, l)
}

// Bind wires the engine around an already unlocked identity.
func (w *Wire) Bind(u *identitysvc.Unlocked, l domain.Listeners) (*Engine, error) {
	server := u.Server()
	if w.Config.RelayURL != "" {
		server = domain.ServerURL(w.Config.RelayURL)
	}
	if server == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, ErrNoRelay)
	}

	rc := relay.NewHTTP(server.String())
	rc.HTTP = w.HTTP
	tokens := relay.NewTokenSource(rc, u, w.Logger)
	d := domain.Delegates{
		Identity:      u,
		Notifications: w.Bus,
		ServerSession: tokens,
	}

	syncOpts := w.Config.Sync
	syncOpts.Server = server
	cache, err := wellknown.New(w.Sessions, store.NewWellKnownKVStore(), rc, d, l, w.Config.WellKnown, w.Logger, w.Metrics)
	if err != nil {
		return nil, err
	}

	return &Engine{
		Wire:       w,
		Unlocked:   u,
		Server:     server,
		Relay:      rc,
		Tokens:     tokens,
		Delegates:  d,
		Listeners:  l,
		Syncer:     inboxsync.NewSyncer(w.Sessions, w.Inbox, rc, d, l, syncOpts, w.Logger),
		Dispatcher: querysvc.NewDispatcher(w.Sessions, w.Ledger, rc, d, l, w.Config.Retry, w.Logger),
		Registrar:  pushsvc.NewRegistrar(w.Sessions, w.Push, rc, d, l),
		WellKnown:  cache,
	}, nil
}

// Owned returns the owned identity of the unlocked identity.
func (e *Engine) Owned() domain.OwnedIdentity { return e.Unlocked.Owned() }

// Close releases the engine's cache and locks the identity. The Wire stays
// open.
func (e *Engine) Close() error {
	e.Unlocked.Lock()
	return e.WellKnown.Close()
}
