package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphersync/internal/domain"
	"ciphersync/internal/services/session"
	"ciphersync/internal/services/session/sessiontest"
)

type postRecorder struct{ owned []domain.OwnedIdentity }

func (p *postRecorder) IdentityChanged(o domain.OwnedIdentity) { p.owned = append(p.owned, o) }

func TestOpen_RequiresIdentityDelegate(t *testing.T) {
	m := sessiontest.NewManager(t)
	_, err := m.Open(context.Background(), domain.Delegates{}, domain.Listeners{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestOpen_BeginFailureIsPersistence(t *testing.T) {
	m := sessiontest.NewManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Open(ctx, sessiontest.Delegates(), domain.Listeners{})
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestClose_DeliversOnlyAfterCommitInOrder(t *testing.T) {
	m := sessiontest.NewManager(t)
	rec := &sessiontest.Recorder{}
	ctx := context.Background()

	sess, err := m.Open(ctx, sessiontest.Delegates(), rec.Listeners())
	require.NoError(t, err)
	require.NoError(t, sess.Txn().Set([]byte("k"), []byte("v")))

	first := domain.InboxMessageEvent{OwnedIdentity: "alice", UID: "1", ArrivedAt: time.Unix(1, 0)}
	second := domain.PendingQueryEvent{CorrelationID: "c", State: domain.QueryResolved}
	sess.Enqueue(first)
	sess.Enqueue(second)
	assert.Empty(t, rec.Events(), "nothing is delivered before commit")
	assert.Equal(t, 2, sess.Pending())

	require.NoError(t, sess.Close())
	assert.Equal(t, []domain.Event{first, second}, rec.Events())

	// The write is durable.
	require.NoError(t, m.View(ctx, func(tx domain.Txn) error {
		_, ok, err := tx.Get([]byte("k"))
		assert.True(t, ok)
		return err
	}))
}

func TestClose_CommitFailureDropsNotifications(t *testing.T) {
	faulty := &sessiontest.FaultyStore{TxnStore: sessiontest.NewStore(t)}
	faulty.FailCommits.Store(1)
	m := session.NewManager(faulty, nil, nil)
	rec := &sessiontest.Recorder{}
	post := &postRecorder{}
	ctx := context.Background()

	d := sessiontest.Delegates()
	d.Notifications = post
	sess, err := m.Open(ctx, d, rec.Listeners())
	require.NoError(t, err)
	require.NoError(t, sess.Txn().Set([]byte("k"), []byte("v")))
	sess.Enqueue(domain.InboxMessageEvent{OwnedIdentity: "alice", UID: "1"})

	err = sess.Close()
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, sessiontest.ErrInjected)
	assert.Empty(t, rec.Events())
	assert.Empty(t, post.owned)

	require.NoError(t, m.View(ctx, func(tx domain.Txn) error {
		_, ok, err := tx.Get([]byte("k"))
		assert.False(t, ok, "rolled back write must not be visible")
		return err
	}))
}

func TestClose_IsIdempotent(t *testing.T) {
	m := sessiontest.NewManager(t)
	rec := &sessiontest.Recorder{}

	sess, err := m.Open(context.Background(), sessiontest.Delegates(), rec.Listeners())
	require.NoError(t, err)
	sess.Enqueue(domain.WellKnownEvent{Entry: domain.WellKnownEntry{Server: "s"}})

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Len(t, rec.Events(), 1, "second close must not redeliver")

	sess.Enqueue(domain.WellKnownEvent{})
	assert.Equal(t, 0, sess.Pending(), "enqueue after close is dropped")
}

func TestDiscard_DropsEventsAndMakesCloseNoop(t *testing.T) {
	m := sessiontest.NewManager(t)
	rec := &sessiontest.Recorder{}
	ctx := context.Background()

	sess, err := m.Open(ctx, sessiontest.Delegates(), rec.Listeners())
	require.NoError(t, err)
	require.NoError(t, sess.Txn().Set([]byte("k"), []byte("v")))
	sess.Enqueue(domain.InboxMessageEvent{OwnedIdentity: "alice", UID: "1"})

	sess.Discard()
	require.NoError(t, sess.Close())
	assert.Empty(t, rec.Events())

	require.NoError(t, m.View(ctx, func(tx domain.Txn) error {
		_, ok, err := tx.Get([]byte("k"))
		assert.False(t, ok)
		return err
	}))
}

func TestListenerPanicIsIsolated(t *testing.T) {
	m := sessiontest.NewManager(t)
	var delivered []domain.MessageUID
	listeners := domain.Listeners{
		InboxMessage: domain.InboxMessageListenerFunc(func(e domain.InboxMessageEvent) {
			if e.UID == "boom" {
				panic("listener bug")
			}
			delivered = append(delivered, e.UID)
		}),
	}

	sess, err := m.Open(context.Background(), sessiontest.Delegates(), listeners)
	require.NoError(t, err)
	sess.Enqueue(domain.InboxMessageEvent{OwnedIdentity: "a", UID: "1"})
	sess.Enqueue(domain.InboxMessageEvent{OwnedIdentity: "a", UID: "boom"})
	sess.Enqueue(domain.InboxMessageEvent{OwnedIdentity: "a", UID: "2"})

	require.NotPanics(t, func() { require.NoError(t, sess.Close()) })
	assert.Equal(t, []domain.MessageUID{"1", "2"}, delivered)
}

func TestNilListenerSlotsAreSkipped(t *testing.T) {
	m := sessiontest.NewManager(t)
	sess, err := m.Open(context.Background(), sessiontest.Delegates(), domain.Listeners{})
	require.NoError(t, err)
	sess.Enqueue(domain.PushConfigurationEvent{})
	assert.NoError(t, sess.Close())
}

func TestNotificationsPostedOncePerIdentity(t *testing.T) {
	m := sessiontest.NewManager(t)
	post := &postRecorder{}
	d := sessiontest.Delegates()
	d.Notifications = post

	sess, err := m.Open(context.Background(), d, domain.Listeners{})
	require.NoError(t, err)
	sess.Enqueue(domain.InboxMessageEvent{OwnedIdentity: "bob", UID: "1"})
	sess.Enqueue(domain.InboxMessageEvent{OwnedIdentity: "alice", UID: "2"})
	sess.Enqueue(domain.ExtendedPayloadEvent{OwnedIdentity: "bob", UID: "1"})
	sess.Enqueue(domain.WellKnownEvent{})
	require.NoError(t, sess.Close())

	assert.Equal(t, []domain.OwnedIdentity{"bob", "alice"}, post.owned)
}

func TestRun_ErrorDiscards(t *testing.T) {
	m := sessiontest.NewManager(t)
	rec := &sessiontest.Recorder{}
	boom := assert.AnError

	err := m.Run(context.Background(), sessiontest.Delegates(), rec.Listeners(), func(s *session.Session) error {
		s.Enqueue(domain.InboxMessageEvent{OwnedIdentity: "a", UID: "1"})
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.Events())
}
