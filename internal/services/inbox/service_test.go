package inbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphersync/internal/domain"
	"ciphersync/internal/services/inbox"
	"ciphersync/internal/services/session"
	"ciphersync/internal/services/session/sessiontest"
	"ciphersync/internal/store"
)

const alice domain.OwnedIdentity = "alice"

type fixture struct {
	t     *testing.T
	mgr   *session.Manager
	inbox *inbox.Service
	rec   *sessiontest.Recorder
}

func newFixture(t *testing.T) *fixture {
	return newFixtureOn(t, sessiontest.NewStore(t))
}

func newFixtureOn(t *testing.T, db domain.TxnStore) *fixture {
	return &fixture{
		t:     t,
		mgr:   session.NewManager(db, nil, nil),
		inbox: inbox.New(store.NewInboxKVStore(), nil, nil),
		rec:   &sessiontest.Recorder{},
	}
}

func (f *fixture) open() *session.Session {
	f.t.Helper()
	sess, err := f.mgr.Open(context.Background(), sessiontest.Delegates(alice), f.rec.Listeners())
	require.NoError(f.t, err)
	return sess
}

func incoming(uid domain.MessageUID, atts ...domain.AttachmentDescriptor) domain.IncomingMessage {
	return domain.IncomingMessage{
		OwnedIdentity:    alice,
		UID:              uid,
		Server:           "https://relay.example.org",
		EncryptedPayload: []byte("ciphertext"),
		ArrivedAt:        time.Unix(1700000000, 0),
		Attachments:      atts,
	}
}

func (f *fixture) countMessages() int {
	n := 0
	require.NoError(f.t, f.mgr.View(context.Background(), func(tx domain.Txn) error {
		for _, err := range f.inbox.Messages(tx, alice) {
			if err != nil {
				return err
			}
			n++
		}
		return nil
	}))
	return n
}

func TestIngestMessage_CommitVisibility(t *testing.T) {
	f := newFixture(t)
	sess := f.open()

	for _, uid := range []domain.MessageUID{"1", "2", "3"} {
		out, err := f.inbox.IngestMessage(sess, incoming(uid))
		require.NoError(t, err)
		assert.Equal(t, domain.IngestCreated, out)
	}
	assert.Empty(t, f.rec.Events())
	require.NoError(t, sess.Close())

	events := f.rec.Events()
	require.Len(t, events, 3)
	for i, uid := range []domain.MessageUID{"1", "2", "3"} {
		ev, ok := events[i].(domain.InboxMessageEvent)
		require.True(t, ok)
		assert.Equal(t, uid, ev.UID)
	}
}

func TestIngestMessage_DuplicateDelivery(t *testing.T) {
	f := newFixture(t)

	for i, want := range []domain.IngestOutcome{domain.IngestCreated, domain.IngestAlreadyPresent} {
		sess := f.open()
		out, err := f.inbox.IngestMessage(sess, incoming("42"))
		require.NoError(t, err, "delivery %d", i)
		assert.Equal(t, want, out)
		require.NoError(t, sess.Close())
	}

	assert.Equal(t, 1, f.countMessages())
	assert.Len(t, f.rec.Events(), 1)
}

func TestIngestMessage_DuplicateWithinOneSession(t *testing.T) {
	f := newFixture(t)
	sess := f.open()
	out, err := f.inbox.IngestMessage(sess, incoming("42"))
	require.NoError(t, err)
	assert.Equal(t, domain.IngestCreated, out)
	out, err = f.inbox.IngestMessage(sess, incoming("42"))
	require.NoError(t, err)
	assert.Equal(t, domain.IngestAlreadyPresent, out)
	require.NoError(t, sess.Close())
	assert.Len(t, f.rec.Events(), 1)
}

func TestIngestMessage_RollbackDiscardsNotifications(t *testing.T) {
	faulty := &sessiontest.FaultyStore{TxnStore: sessiontest.NewStore(t)}
	f := newFixtureOn(t, faulty)
	faulty.FailCommits.Store(1)

	sess := f.open()
	out, err := f.inbox.IngestMessage(sess, incoming("7"))
	require.NoError(t, err)
	assert.Equal(t, domain.IngestCreated, out)

	err = sess.Close()
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Empty(t, f.rec.Events())
	assert.Equal(t, 0, f.countMessages())
}

func TestIngestMessage_MalformedLeavesStateAndSessionUsable(t *testing.T) {
	f := newFixture(t)
	sess := f.open()

	bad := incoming("1")
	bad.EncryptedPayload = nil
	_, err := f.inbox.IngestMessage(sess, bad)
	assert.True(t, domain.IsMalformed(err))

	dupIdx := incoming("2",
		domain.AttachmentDescriptor{Index: 0, ExpectedSize: 1},
		domain.AttachmentDescriptor{Index: 0, ExpectedSize: 2},
	)
	_, err = f.inbox.IngestMessage(sess, dupIdx)
	var mal *domain.MalformedPayloadError
	require.ErrorAs(t, err, &mal)
	assert.Equal(t, "attachments", mal.Field)

	out, err := f.inbox.IngestMessage(sess, incoming("3"))
	require.NoError(t, err)
	assert.Equal(t, domain.IngestCreated, out)
	require.NoError(t, sess.Close())
	assert.Equal(t, 1, f.countMessages())
}

func TestIngestMessage_UnknownOwnedIdentity(t *testing.T) {
	f := newFixture(t)
	sess := f.open()
	defer sess.Discard()

	in := incoming("1")
	in.OwnedIdentity = "mallory"
	_, err := f.inbox.IngestMessage(sess, in)
	assert.ErrorIs(t, err, domain.ErrUnknownOwnedIdentity)
}

func TestIngestExtendedPayload(t *testing.T) {
	f := newFixture(t)
	sess := f.open()

	out, err := f.inbox.IngestExtendedPayload(sess, alice, "1", []byte("ext"))
	require.NoError(t, err)
	assert.Equal(t, domain.ExtendedPayloadMessageNotFound, out)

	_, err = f.inbox.IngestMessage(sess, incoming("1"))
	require.NoError(t, err)
	out, err = f.inbox.IngestExtendedPayload(sess, alice, "1", []byte("ext"))
	require.NoError(t, err)
	assert.Equal(t, domain.ExtendedPayloadApplied, out)

	// Same payload again: applied, not re-notified.
	out, err = f.inbox.IngestExtendedPayload(sess, alice, "1", []byte("ext"))
	require.NoError(t, err)
	assert.Equal(t, domain.ExtendedPayloadApplied, out)
	require.NoError(t, sess.Close())

	events := f.rec.Events()
	require.Len(t, events, 2)
	ext, ok := events[1].(domain.ExtendedPayloadEvent)
	require.True(t, ok)
	assert.Equal(t, []byte("ext"), ext.Payload)

	require.NoError(t, f.mgr.View(context.Background(), func(tx domain.Txn) error {
		msg, ok, err := f.inbox.Message(tx, alice, "1")
		require.True(t, ok)
		assert.True(t, msg.ExtendedPayloadAvailable)
		return err
	}))
}

func TestIngestAttachmentChunk_Lifecycle(t *testing.T) {
	f := newFixture(t)
	sess := f.open()
	_, err := f.inbox.IngestMessage(sess, incoming("1", domain.AttachmentDescriptor{Index: 0, ExpectedSize: 10}))
	require.NoError(t, err)

	out, err := f.inbox.IngestAttachmentChunk(sess, alice, "1", 1, domain.ByteRange{Offset: 0, Length: 1}, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkAttachmentNotFound, out)

	out, err = f.inbox.IngestAttachmentChunk(sess, alice, "1", 0, domain.ByteRange{Offset: 5, Length: 5}, []byte("world"))
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkPartial, out)

	_, err = f.inbox.IngestAttachmentChunk(sess, alice, "1", 0, domain.ByteRange{Offset: 8, Length: 4}, []byte("oops"))
	assert.True(t, domain.IsMalformed(err), "range past expected size")

	_, err = f.inbox.IngestAttachmentChunk(sess, alice, "1", 0, domain.ByteRange{Offset: 0, Length: 5}, []byte("abc"))
	assert.True(t, domain.IsMalformed(err), "length mismatch")

	out, err = f.inbox.IngestAttachmentChunk(sess, alice, "1", 0, domain.ByteRange{Offset: 0, Length: 5}, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkCompleted, out)

	out, err = f.inbox.IngestAttachmentChunk(sess, alice, "1", 0, domain.ByteRange{Offset: 0, Length: 5}, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkAlreadyComplete, out)
	require.NoError(t, sess.Close())

	var progress []domain.InboxAttachmentEvent
	for _, e := range f.rec.Events() {
		if ev, ok := e.(domain.InboxAttachmentEvent); ok {
			progress = append(progress, ev)
		}
	}
	require.Len(t, progress, 2)
	assert.False(t, progress[0].Completed)
	assert.Equal(t, int64(5), progress[0].ReceivedBytes)
	assert.True(t, progress[1].Completed)
	assert.Equal(t, int64(10), progress[1].ReceivedBytes)

	require.NoError(t, f.mgr.View(context.Background(), func(tx domain.Txn) error {
		data, ok, err := f.inbox.AttachmentData(tx, alice, "1", 0)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "helloworld", string(data))
		return nil
	}))
}

func TestMarkAndConfirmDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := f.open()
	_, err := f.inbox.IngestMessage(sess, incoming("1", domain.AttachmentDescriptor{Index: 0, ExpectedSize: 2}))
	require.NoError(t, err)
	_, err = f.inbox.IngestAttachmentChunk(sess, alice, "1", 0, domain.ByteRange{Length: 2}, []byte("hi"))
	require.NoError(t, err)

	del, err := f.inbox.ConfirmServerDeletion(sess, alice, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeleteNotRequested, del)

	mark, err := f.inbox.MarkListedAndScheduleDeletion(sess, alice, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.MarkApplied, mark)
	mark, err = f.inbox.MarkListedAndScheduleDeletion(sess, alice, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.MarkAlreadyRequested, mark)
	mark, err = f.inbox.MarkListedAndScheduleDeletion(sess, alice, "missing")
	require.NoError(t, err)
	assert.Equal(t, domain.MarkMessageNotFound, mark)
	require.NoError(t, sess.Close())

	var marks []domain.MarkListedAndDeleteEvent
	for _, e := range f.rec.Events() {
		if ev, ok := e.(domain.MarkListedAndDeleteEvent); ok {
			marks = append(marks, ev)
		}
	}
	require.Len(t, marks, 1)
	assert.Equal(t, domain.ServerURL("https://relay.example.org"), marks[0].Server)

	var pending []domain.MessageUID
	require.NoError(t, f.mgr.View(ctx, func(tx domain.Txn) error {
		for msg, err := range f.inbox.PendingDeletions(tx, alice) {
			if err != nil {
				return err
			}
			assert.True(t, msg.Listed)
			pending = append(pending, msg.UID)
		}
		return nil
	}))
	assert.Equal(t, []domain.MessageUID{"1"}, pending)

	sess = f.open()
	del, err = f.inbox.ConfirmServerDeletion(sess, alice, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.Deleted, del)
	del, err = f.inbox.ConfirmServerDeletion(sess, alice, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeleteNotFound, del)
	require.NoError(t, sess.Close())

	assert.Equal(t, 0, f.countMessages())
	require.NoError(t, f.mgr.View(ctx, func(tx domain.Txn) error {
		atts, err := f.inbox.Attachments(tx, alice, "1")
		assert.Empty(t, atts)
		return err
	}))
}
