package store

import (
	"iter"

	"ciphersync/internal/domain"
)

// WellKnownKVStore is the durable tier of the well-known cache.
type WellKnownKVStore struct{}

// NewWellKnownKVStore returns a WellKnownKVStore.
func NewWellKnownKVStore() *WellKnownKVStore { return &WellKnownKVStore{} }

// LoadWellKnown returns the cached entry for server.
func (s *WellKnownKVStore) LoadWellKnown(tx domain.Txn, server domain.ServerURL) (domain.WellKnownEntry, bool, error) {
	var e domain.WellKnownEntry
	ok, err := getJSON(tx, wellKnownKey(server), &e)
	return e, ok, err
}

// SaveWellKnown replaces the entry for entry.Server wholesale.
func (s *WellKnownKVStore) SaveWellKnown(tx domain.Txn, entry domain.WellKnownEntry) error {
	return putJSON(tx, wellKnownKey(entry.Server), entry)
}

// ListWellKnown yields every persisted entry.
func (s *WellKnownKVStore) ListWellKnown(tx domain.Txn) iter.Seq2[domain.WellKnownEntry, error] {
	return scanJSON[domain.WellKnownEntry](tx, []byte(nsWellKnown))
}

// Compile-time assertion that WellKnownKVStore implements domain.WellKnownStore.
var _ domain.WellKnownStore = (*WellKnownKVStore)(nil)
