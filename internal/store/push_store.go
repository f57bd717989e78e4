package store

import "ciphersync/internal/domain"

// PushKVStore persists one push configuration per owned identity.
type PushKVStore struct{}

// NewPushKVStore returns a PushKVStore.
func NewPushKVStore() *PushKVStore { return &PushKVStore{} }

// LoadPushConfiguration returns the configuration registered for owned.
func (s *PushKVStore) LoadPushConfiguration(
	tx domain.Txn,
	owned domain.OwnedIdentity,
) (domain.PushConfiguration, bool, error) {
	var cfg domain.PushConfiguration
	ok, err := getJSON(tx, pushKey(owned), &cfg)
	return cfg, ok, err
}

// SavePushConfiguration replaces the configuration of cfg.OwnedIdentity.
func (s *PushKVStore) SavePushConfiguration(tx domain.Txn, cfg domain.PushConfiguration) error {
	return putJSON(tx, pushKey(cfg.OwnedIdentity), cfg)
}

// Compile-time assertion that PushKVStore implements domain.PushStore.
var _ domain.PushStore = (*PushKVStore)(nil)
