// Package sessiontest provides fixtures for tests that run fetch sessions
// against an in-memory store.
package sessiontest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"ciphersync/internal/domain"
	"ciphersync/internal/services/session"
	"ciphersync/internal/store"
)

// NewStore opens an in-memory badger store closed at test cleanup.
func NewStore(t testing.TB) *store.Badger {
	t.Helper()
	db, err := store.OpenBadger(store.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewManager returns a Manager over a fresh in-memory store.
func NewManager(t testing.TB) *session.Manager {
	t.Helper()
	return session.NewManager(NewStore(t), nil, nil)
}

// Identities is an IdentityDelegate that recognises a fixed set of owned
// identities. An empty set recognises everything.
type Identities map[domain.OwnedIdentity]bool

// IsOwnedIdentity implements domain.IdentityDelegate.
func (ids Identities) IsOwnedIdentity(_ context.Context, owned domain.OwnedIdentity) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	return ids[owned], nil
}

// Delegates returns Delegates with an Identities delegate for owned.
func Delegates(owned ...domain.OwnedIdentity) domain.Delegates {
	ids := Identities{}
	for _, o := range owned {
		ids[o] = true
	}
	return domain.Delegates{Identity: ids}
}

// Recorder captures every event delivered to any listener slot, in order.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *Recorder) add(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the delivered events.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// Listeners binds the recorder to every slot.
func (r *Recorder) Listeners() domain.Listeners {
	return domain.Listeners{
		InboxMessage:        domain.InboxMessageListenerFunc(func(e domain.InboxMessageEvent) { r.add(e) }),
		ExtendedPayload:     domain.ExtendedPayloadListenerFunc(func(e domain.ExtendedPayloadEvent) { r.add(e) }),
		InboxAttachment:     domain.InboxAttachmentListenerFunc(func(e domain.InboxAttachmentEvent) { r.add(e) }),
		MarkListedAndDelete: domain.MarkListedAndDeleteListenerFunc(func(e domain.MarkListedAndDeleteEvent) { r.add(e) }),
		PushConfiguration:   domain.PushConfigurationListenerFunc(func(e domain.PushConfigurationEvent) { r.add(e) }),
		PendingQuery:        domain.PendingQueryListenerFunc(func(e domain.PendingQueryEvent) { r.add(e) }),
		WellKnown:           domain.WellKnownListenerFunc(func(e domain.WellKnownEvent) { r.add(e) }),
	}
}

// ErrInjected is the commit failure produced by FaultyStore.
var ErrInjected = errors.New("injected commit failure")

// FaultyStore wraps a TxnStore and fails the next FailCommits commits.
type FaultyStore struct {
	domain.TxnStore
	FailCommits atomic.Int32
}

// Begin wraps the inner transaction.
func (f *FaultyStore) Begin(ctx context.Context) (domain.Txn, error) {
	tx, err := f.TxnStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTxn{Txn: tx, store: f}, nil
}

type faultyTxn struct {
	domain.Txn
	store *FaultyStore
}

func (t *faultyTxn) Commit() error {
	if t.store.FailCommits.Add(-1) >= 0 {
		t.Txn.Discard()
		return ErrInjected
	}
	t.store.FailCommits.Store(0)
	return t.Txn.Commit()
}
