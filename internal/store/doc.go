// Package store provides persistence for ciphersync's synchronization state.
//
// Transactional state lives in an ordered key-value keyspace behind
// domain.TxnStore, with two backends:
//   - Badger, an embedded BadgerDB (the default)
//   - Postgres, a single key-value table over lib/pq
//
// Typed repositories encode domain records as JSON inside a caller-supplied
// transaction:
//   - Inbox messages, attachments and chunks (InboxKVStore)
//   - Pending server queries (QueryKVStore)
//   - Well-known configuration (WellKnownKVStore)
//   - Push configurations (PushKVStore)
//
// The local identity is kept outside the keyspace in a passphrase-sealed
// file (IdentityFileStore).
package store
