package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ciphersync/internal/domain"
	"ciphersync/internal/metrics"
)

// Session is one unit of work. It is meant to be used by a single goroutine
// and closed exactly once with defer; further Close calls are no-ops.
type Session struct {
	ctx       context.Context
	tx        domain.Txn
	delegates domain.Delegates
	listeners domain.Listeners
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu     sync.Mutex
	events []domain.Event
	closed bool
}

// Context returns the context the session was opened with.
func (s *Session) Context() context.Context { return s.ctx }

// Txn returns the session's transaction.
func (s *Session) Txn() domain.Txn { return s.tx }

// Identity returns the identity delegate. It is never nil.
func (s *Session) Identity() domain.IdentityDelegate { return s.delegates.Identity }

// ServerSession returns the server-session delegate, which may be nil.
func (s *Session) ServerSession() domain.CreateServerSessionDelegate {
	return s.delegates.ServerSession
}

// Enqueue buffers e until commit. Events enqueued after Close are dropped.
func (s *Session) Enqueue(e domain.Event) {
	if e == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("event enqueued on closed session dropped", zap.Stringer("slot", e.Slot()))
		return
	}
	s.events = append(s.events, e)
}

// Pending returns the number of buffered events.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Close commits the transaction and then delivers the buffered events.
//
// On commit failure the transaction is rolled back, the buffer is dropped and
// the returned error wraps domain.ErrPersistence. Listener panics are
// recovered and logged; they never undo the commit.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	events := s.events
	s.events = nil
	s.mu.Unlock()

	if err := s.tx.Commit(); err != nil {
		s.tx.Discard()
		s.metrics.SessionClosed("rolled_back")
		s.logger.Warn("session commit failed",
			zap.Int("dropped_events", len(events)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: commit: %w", domain.ErrPersistence, err)
	}
	s.metrics.SessionClosed("committed")

	for _, e := range events {
		s.deliver(e)
	}
	s.postNotifications(events)
	return nil
}

// Discard rolls back the transaction and drops the buffered events. It is a
// no-op on a closed session, and makes a later Close a no-op.
func (s *Session) Discard() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	dropped := len(s.events)
	s.events = nil
	s.mu.Unlock()

	s.tx.Discard()
	s.metrics.SessionClosed("discarded")
	if dropped > 0 {
		s.logger.Debug("session discarded", zap.Int("dropped_events", dropped))
	}
}

// postNotifications signals each distinct owned identity once, in the order
// they first appear among the events.
func (s *Session) postNotifications(events []domain.Event) {
	post := s.delegates.Notifications
	if post == nil {
		return
	}
	seen := make(map[domain.OwnedIdentity]struct{}, len(events))
	for _, e := range events {
		owned := e.Owner()
		if owned == "" {
			continue
		}
		if _, dup := seen[owned]; dup {
			continue
		}
		seen[owned] = struct{}{}
		s.guard("notification-posting", func() { post.IdentityChanged(owned) })
	}
}

// Compile-time assertion that Session implements domain.Session.
var _ domain.Session = (*Session)(nil)
