package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphersync/internal/domain"
	"ciphersync/internal/store"
)

func TestInboxKVStore_DeleteMessageCascades(t *testing.T) {
	db := newMemStore(t)
	inbox := store.NewInboxKVStore()
	ctx := context.Background()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	for _, uid := range []domain.MessageUID{"m1", "m10"} {
		require.NoError(t, inbox.SaveMessage(tx, domain.InboxMessage{
			OwnedIdentity:   "alice",
			UID:             uid,
			ArrivedAt:       time.Unix(100, 0).UTC(),
			AttachmentCount: 1,
		}))
		require.NoError(t, inbox.SaveAttachment(tx, domain.InboxAttachment{
			OwnedIdentity: "alice", UID: uid, Index: 0, ExpectedSize: 4,
		}))
		require.NoError(t, inbox.SaveAttachmentChunk(tx, "alice", uid, 0, 0, []byte("data")))
	}
	require.NoError(t, tx.Commit())

	tx, err = db.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, inbox.DeleteMessage(tx, "alice", "m1"))
	require.NoError(t, tx.Commit())

	tx, err = db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Discard()

	_, ok, err := inbox.LoadMessage(tx, "alice", "m1")
	require.NoError(t, err)
	assert.False(t, ok)
	atts, err := inbox.ListAttachments(tx, "alice", "m1")
	require.NoError(t, err)
	assert.Empty(t, atts)
	data, err := inbox.ReadAttachment(tx, "alice", "m1", 0)
	require.NoError(t, err)
	assert.Empty(t, data)

	// The sibling whose uid shares a prefix is untouched.
	_, ok, err = inbox.LoadMessage(tx, "alice", "m10")
	require.NoError(t, err)
	assert.True(t, ok)
	data, err = inbox.ReadAttachment(tx, "alice", "m10", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)
}

func TestInboxKVStore_ReadAttachmentAssemblesOutOfOrderChunks(t *testing.T) {
	db := newMemStore(t)
	inbox := store.NewInboxKVStore()

	tx, err := db.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Discard()

	require.NoError(t, inbox.SaveAttachmentChunk(tx, "bob", "u", 2, 6, []byte("world")))
	require.NoError(t, inbox.SaveAttachmentChunk(tx, "bob", "u", 2, 0, []byte("hello ")))
	require.NoError(t, inbox.SaveAttachmentChunk(tx, "bob", "u", 2, 3, []byte("lo ")))

	data, err := inbox.ReadAttachment(tx, "bob", "u", 2)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestInboxKVStore_ListMessagesIsScopedToOwner(t *testing.T) {
	db := newMemStore(t)
	inbox := store.NewInboxKVStore()

	tx, err := db.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Discard()

	require.NoError(t, inbox.SaveMessage(tx, domain.InboxMessage{OwnedIdentity: "a", UID: "1"}))
	require.NoError(t, inbox.SaveMessage(tx, domain.InboxMessage{OwnedIdentity: "a", UID: "2"}))
	require.NoError(t, inbox.SaveMessage(tx, domain.InboxMessage{OwnedIdentity: "ab", UID: "3"}))

	var uids []domain.MessageUID
	for msg, err := range inbox.ListMessages(tx, "a") {
		require.NoError(t, err)
		uids = append(uids, msg.UID)
	}
	assert.Equal(t, []domain.MessageUID{"1", "2"}, uids)
}
