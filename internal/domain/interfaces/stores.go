package interfaces

import (
	"context"
	"iter"

	domaintypes "ciphersync/internal/domain/types"
)

// Txn is one read-write transaction against the ordered key-value store.
// A Txn is not safe for concurrent use.
type Txn interface {
	// Get returns the value stored under key; ok is false when absent.
	Get(key []byte) (value []byte, ok bool, err error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Scan calls fn for every key with the given prefix in ascending key
	// order. Returning ErrStopScan from fn ends the scan without error.
	Scan(prefix []byte, fn func(key, value []byte) error) error
	Commit() error
	Discard()
}

// TxnStore opens transactions. Implementations provide at least
// read-committed isolation and detect write conflicts at commit.
type TxnStore interface {
	Begin(ctx context.Context) (Txn, error)
	Close() error
}

// IdentityStore persists your long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// InboxStore persists inbox messages, their attachments and attachment bytes.
type InboxStore interface {
	LoadMessage(tx Txn, owned domaintypes.OwnedIdentity, uid domaintypes.MessageUID) (
		domaintypes.InboxMessage,
		bool,
		error,
	)
	SaveMessage(tx Txn, msg domaintypes.InboxMessage) error
	// DeleteMessage removes the message, its attachments and their bytes.
	DeleteMessage(tx Txn, owned domaintypes.OwnedIdentity, uid domaintypes.MessageUID) error
	ListMessages(tx Txn, owned domaintypes.OwnedIdentity) iter.Seq2[domaintypes.InboxMessage, error]

	LoadAttachment(
		tx Txn,
		owned domaintypes.OwnedIdentity,
		uid domaintypes.MessageUID,
		index int,
	) (domaintypes.InboxAttachment, bool, error)
	SaveAttachment(tx Txn, att domaintypes.InboxAttachment) error
	ListAttachments(
		tx Txn,
		owned domaintypes.OwnedIdentity,
		uid domaintypes.MessageUID,
	) ([]domaintypes.InboxAttachment, error)
	SaveAttachmentChunk(
		tx Txn,
		owned domaintypes.OwnedIdentity,
		uid domaintypes.MessageUID,
		index int,
		offset int64,
		data []byte,
	) error
	// ReadAttachment assembles the stored chunks in offset order.
	ReadAttachment(
		tx Txn,
		owned domaintypes.OwnedIdentity,
		uid domaintypes.MessageUID,
		index int,
	) ([]byte, error)
}

// QueryStore persists pending server queries.
type QueryStore interface {
	LoadQuery(tx Txn, id domaintypes.CorrelationID) (domaintypes.PendingServerQuery, bool, error)
	SaveQuery(tx Txn, q domaintypes.PendingServerQuery) error
	DeleteQuery(tx Txn, id domaintypes.CorrelationID) error
	ListQueries(tx Txn) iter.Seq2[domaintypes.PendingServerQuery, error]
}

// WellKnownStore persists the durable tier of the well-known cache.
type WellKnownStore interface {
	LoadWellKnown(tx Txn, server domaintypes.ServerURL) (domaintypes.WellKnownEntry, bool, error)
	SaveWellKnown(tx Txn, entry domaintypes.WellKnownEntry) error
	ListWellKnown(tx Txn) iter.Seq2[domaintypes.WellKnownEntry, error]
}

// PushStore persists one push configuration per owned identity.
type PushStore interface {
	LoadPushConfiguration(tx Txn, owned domaintypes.OwnedIdentity) (
		domaintypes.PushConfiguration,
		bool,
		error,
	)
	SavePushConfiguration(tx Txn, cfg domaintypes.PushConfiguration) error
}
