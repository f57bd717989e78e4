package store

import (
	"iter"

	"ciphersync/internal/domain"
)

// QueryKVStore persists pending server queries keyed by correlation id.
type QueryKVStore struct{}

// NewQueryKVStore returns a QueryKVStore.
func NewQueryKVStore() *QueryKVStore { return &QueryKVStore{} }

// LoadQuery returns the query with the given correlation id.
func (s *QueryKVStore) LoadQuery(tx domain.Txn, id domain.CorrelationID) (domain.PendingServerQuery, bool, error) {
	var q domain.PendingServerQuery
	ok, err := getJSON(tx, queryKey(id), &q)
	return q, ok, err
}

// SaveQuery inserts or replaces q.
func (s *QueryKVStore) SaveQuery(tx domain.Txn, q domain.PendingServerQuery) error {
	return putJSON(tx, queryKey(q.CorrelationID), q)
}

// DeleteQuery removes the query; deleting an absent id is a no-op.
func (s *QueryKVStore) DeleteQuery(tx domain.Txn, id domain.CorrelationID) error {
	return tx.Delete(queryKey(id))
}

// ListQueries yields every stored query in correlation id order.
func (s *QueryKVStore) ListQueries(tx domain.Txn) iter.Seq2[domain.PendingServerQuery, error] {
	return scanJSON[domain.PendingServerQuery](tx, []byte(nsQuery))
}

// Compile-time assertion that QueryKVStore implements domain.QueryStore.
var _ domain.QueryStore = (*QueryKVStore)(nil)
