// Package notify fans "identity changed" signals out to in-process
// subscribers over an EventBus.
package notify

import (
	evbus "github.com/asaskevich/EventBus"
	"go.uber.org/zap"

	"ciphersync/internal/domain"
)

// TopicIdentityChanged is published for every changed owned identity. A
// per-identity topic (TopicIdentityChanged + ":" + owned) is published too.
const TopicIdentityChanged = "identity:changed"

// Handler receives the owned identity whose state changed.
type Handler func(owned domain.OwnedIdentity)

// Bus implements domain.NotificationPostingDelegate.
type Bus struct {
	bus    evbus.Bus
	logger *zap.Logger
}

// NewBus returns an empty Bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{bus: evbus.New(), logger: logger.With(zap.String("module", "notify"))}
}

// IdentityChanged publishes owned on the global and per-identity topics.
func (b *Bus) IdentityChanged(owned domain.OwnedIdentity) {
	b.logger.Debug("identity changed", zap.String("owned", owned.String()))
	b.bus.Publish(TopicIdentityChanged, owned)
	b.bus.Publish(identityTopic(owned), owned)
}

// Subscribe registers h for every identity. The returned func unsubscribes.
func (b *Bus) Subscribe(h Handler) (func(), error) {
	return b.subscribe(TopicIdentityChanged, h)
}

// SubscribeIdentity registers h for changes to owned only.
func (b *Bus) SubscribeIdentity(owned domain.OwnedIdentity, h Handler) (func(), error) {
	return b.subscribe(identityTopic(owned), h)
}

// SubscribeAsync registers h to run on its own goroutine per publish.
func (b *Bus) SubscribeAsync(h Handler) (func(), error) {
	fn := func(owned domain.OwnedIdentity) { h(owned) }
	if err := b.bus.SubscribeAsync(TopicIdentityChanged, fn, false); err != nil {
		return nil, err
	}
	return func() { _ = b.bus.Unsubscribe(TopicIdentityChanged, fn) }, nil
}

// WaitAsync blocks until every async handler has returned.
func (b *Bus) WaitAsync() { b.bus.WaitAsync() }

func (b *Bus) subscribe(topic string, h Handler) (func(), error) {
	fn := func(owned domain.OwnedIdentity) { h(owned) }
	if err := b.bus.Subscribe(topic, fn); err != nil {
		return nil, err
	}
	return func() { _ = b.bus.Unsubscribe(topic, fn) }, nil
}

func identityTopic(owned domain.OwnedIdentity) string {
	return TopicIdentityChanged + ":" + owned.String()
}

// Compile-time assertion that Bus implements domain.NotificationPostingDelegate.
var _ domain.NotificationPostingDelegate = (*Bus)(nil)
