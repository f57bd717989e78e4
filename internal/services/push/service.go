package push

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.uber.org/zap"

	"ciphersync/internal/domain"
	"ciphersync/internal/services/session"
)

// Service stores push configurations inside fetch sessions.
type Service struct {
	store  domain.PushStore
	logger *zap.Logger
	now    func() time.Time
}

// New returns a push Service.
func New(store domain.PushStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger.With(zap.String("module", "push")), now: time.Now}
}

// Register stores cfg as the configuration of cfg.OwnedIdentity and enqueues
// a PushConfigurationEvent. Registering an identical configuration again
// returns the stored one without a new event.
func (s *Service) Register(sess domain.Session, cfg domain.PushConfiguration) (domain.PushConfiguration, bool, error) {
	if cfg.OwnedIdentity == "" {
		return domain.PushConfiguration{}, false, domain.Malformed("owned_identity", "empty")
	}
	if cfg.Token == "" {
		return domain.PushConfiguration{}, false, domain.Malformed("token", "empty")
	}
	ok, err := sess.Identity().IsOwnedIdentity(sess.Context(), cfg.OwnedIdentity)
	if err != nil {
		return domain.PushConfiguration{}, false, fmt.Errorf("identity delegate: %w", err)
	}
	if !ok {
		return domain.PushConfiguration{}, false, fmt.Errorf("%w: %s", domain.ErrUnknownOwnedIdentity, cfg.OwnedIdentity)
	}

	tx := sess.Txn()
	current, exists, err := s.store.LoadPushConfiguration(tx, cfg.OwnedIdentity)
	if err != nil {
		return domain.PushConfiguration{}, false, fmt.Errorf("load push configuration: %w", err)
	}
	if exists && sameRegistration(current, cfg) {
		return current, false, nil
	}

	cfg.Parameters = maps.Clone(cfg.Parameters)
	cfg.RegisteredAt = s.now().UTC()
	cfg.ServerAcked = false
	cfg.ServerAckedAt = time.Time{}
	if err := s.store.SavePushConfiguration(tx, cfg); err != nil {
		return domain.PushConfiguration{}, false, fmt.Errorf("save push configuration: %w", err)
	}
	sess.Enqueue(domain.PushConfigurationEvent{Configuration: cfg})
	s.logger.Info("push configuration registered",
		zap.String("owned", cfg.OwnedIdentity.String()),
		zap.Bool("multi_device", cfg.MultiDevice),
	)
	return cfg, true, nil
}

// MarkAcknowledged records that the relay accepted token for owned. An
// acknowledgement for a token that has since been replaced is ignored.
func (s *Service) MarkAcknowledged(sess domain.Session, owned domain.OwnedIdentity, token string) (bool, error) {
	tx := sess.Txn()
	cfg, ok, err := s.store.LoadPushConfiguration(tx, owned)
	if err != nil {
		return false, fmt.Errorf("load push configuration: %w", err)
	}
	if !ok || cfg.Token != token {
		return false, nil
	}
	if cfg.ServerAcked {
		return true, nil
	}
	cfg.ServerAcked = true
	cfg.ServerAckedAt = s.now().UTC()
	if err := s.store.SavePushConfiguration(tx, cfg); err != nil {
		return false, fmt.Errorf("save push configuration: %w", err)
	}
	return true, nil
}

// Get returns the configuration of owned.
func (s *Service) Get(tx domain.Txn, owned domain.OwnedIdentity) (domain.PushConfiguration, bool, error) {
	return s.store.LoadPushConfiguration(tx, owned)
}

func sameRegistration(a, b domain.PushConfiguration) bool {
	return a.Token == b.Token &&
		a.DeviceName == b.DeviceName &&
		a.MultiDevice == b.MultiDevice &&
		maps.Equal(a.Parameters, b.Parameters)
}

// Registrar stores a configuration and then registers it with the relay.
type Registrar struct {
	sessions  *session.Manager
	service   *Service
	transport domain.PushTransport
	delegates domain.Delegates
	listeners domain.Listeners
}

// NewRegistrar wires a Registrar.
func NewRegistrar(
	sessions *session.Manager,
	service *Service,
	transport domain.PushTransport,
	d domain.Delegates,
	l domain.Listeners,
) *Registrar {
	return &Registrar{sessions: sessions, service: service, transport: transport, delegates: d, listeners: l}
}

// Register persists cfg, sends it to the relay unless the relay already
// acknowledged the same registration, and records the acknowledgement.
func (r *Registrar) Register(ctx context.Context, cfg domain.PushConfiguration) (domain.PushConfiguration, error) {
	var stored domain.PushConfiguration
	err := r.sessions.Run(ctx, r.delegates, r.listeners, func(sess *session.Session) error {
		var err error
		stored, _, err = r.service.Register(sess, cfg)
		return err
	})
	if err != nil {
		return domain.PushConfiguration{}, err
	}
	if stored.ServerAcked {
		return stored, nil
	}

	token := ""
	if r.delegates.ServerSession != nil {
		token, err = r.delegates.ServerSession.ServerSessionToken(ctx, stored.OwnedIdentity)
		if err != nil {
			return stored, fmt.Errorf("server session: %w", err)
		}
	}
	if err := r.transport.RegisterPush(ctx, token, stored); err != nil {
		return stored, fmt.Errorf("register push: %w", err)
	}

	err = r.sessions.Run(ctx, r.delegates, r.listeners, func(sess *session.Session) error {
		if _, err := r.service.MarkAcknowledged(sess, stored.OwnedIdentity, stored.Token); err != nil {
			return err
		}
		var err error
		stored, _, err = r.service.Get(sess.Txn(), stored.OwnedIdentity)
		return err
	})
	return stored, err
}
