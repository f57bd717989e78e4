package store

import (
	"fmt"
	"iter"

	"ciphersync/internal/domain"
)

// InboxKVStore keeps inbox messages, attachment metadata and raw attachment
// chunks in the transactional keyspace.
type InboxKVStore struct{}

// NewInboxKVStore returns an InboxKVStore.
func NewInboxKVStore() *InboxKVStore { return &InboxKVStore{} }

// LoadMessage returns the message for (owned, uid).
func (s *InboxKVStore) LoadMessage(
	tx domain.Txn,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
) (domain.InboxMessage, bool, error) {
	var msg domain.InboxMessage
	ok, err := getJSON(tx, messageKey(owned, uid), &msg)
	return msg, ok, err
}

// SaveMessage inserts or replaces msg.
func (s *InboxKVStore) SaveMessage(tx domain.Txn, msg domain.InboxMessage) error {
	return putJSON(tx, messageKey(msg.OwnedIdentity, msg.UID), msg)
}

// DeleteMessage removes the message together with its attachments and chunks.
func (s *InboxKVStore) DeleteMessage(tx domain.Txn, owned domain.OwnedIdentity, uid domain.MessageUID) error {
	for _, prefix := range [][]byte{chunkMessagePrefix(owned, uid), attachmentPrefix(owned, uid)} {
		keys, err := collectKeys(tx, prefix)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := tx.Delete(k); err != nil {
				return err
			}
		}
	}
	return tx.Delete(messageKey(owned, uid))
}

// ListMessages yields every message of owned in uid order.
func (s *InboxKVStore) ListMessages(tx domain.Txn, owned domain.OwnedIdentity) iter.Seq2[domain.InboxMessage, error] {
	return scanJSON[domain.InboxMessage](tx, messagePrefix(owned))
}

// LoadAttachment returns attachment index of (owned, uid).
func (s *InboxKVStore) LoadAttachment(
	tx domain.Txn,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
	index int,
) (domain.InboxAttachment, bool, error) {
	var att domain.InboxAttachment
	ok, err := getJSON(tx, attachmentKey(owned, uid, index), &att)
	return att, ok, err
}

// SaveAttachment inserts or replaces att.
func (s *InboxKVStore) SaveAttachment(tx domain.Txn, att domain.InboxAttachment) error {
	return putJSON(tx, attachmentKey(att.OwnedIdentity, att.UID, att.Index), att)
}

// ListAttachments returns the attachments of (owned, uid) ordered by index.
func (s *InboxKVStore) ListAttachments(
	tx domain.Txn,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
) ([]domain.InboxAttachment, error) {
	var out []domain.InboxAttachment
	for att, err := range scanJSON[domain.InboxAttachment](tx, attachmentPrefix(owned, uid)) {
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, nil
}

// SaveAttachmentChunk stores data received at offset. A chunk re-delivered
// at the same offset replaces the previous one.
func (s *InboxKVStore) SaveAttachmentChunk(
	tx domain.Txn,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
	index int,
	offset int64,
	data []byte,
) error {
	return tx.Set(chunkKey(owned, uid, index, offset), data)
}

// ReadAttachment assembles the stored chunks into one buffer. Overlapping
// chunks carry the same bytes, so later offsets simply overwrite.
func (s *InboxKVStore) ReadAttachment(
	tx domain.Txn,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
	index int,
) ([]byte, error) {
	var out []byte
	err := tx.Scan(chunkPrefix(owned, uid, index), func(k, v []byte) error {
		off, err := chunkOffset(k)
		if err != nil {
			return err
		}
		end := off + int64(len(v))
		if off < 0 {
			return fmt.Errorf("chunk %q: negative offset", k)
		}
		if int64(len(out)) < end {
			grown := make([]byte, end)
			copy(grown, out)
			out = grown
		}
		copy(out[off:end], v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Compile-time assertion that InboxKVStore implements domain.InboxStore.
var _ domain.InboxStore = (*InboxKVStore)(nil)
