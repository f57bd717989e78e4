package query

import (
	"bytes"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ciphersync/internal/domain"
	"ciphersync/internal/metrics"
)

// NewCorrelationID returns a random 128-bit correlation id.
func NewCorrelationID() domain.CorrelationID {
	return domain.CorrelationID(uuid.NewString())
}

// Ledger is the pending query ledger.
type Ledger struct {
	store   domain.QueryStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewLedger returns a Ledger persisting through store.
func NewLedger(store domain.QueryStore, logger *zap.Logger, m *metrics.Metrics) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:   store,
		logger:  logger.With(zap.String("module", "query")),
		metrics: m,
		now:     time.Now,
	}
}

// Create records a new query in the Created state. Any existing record with
// the same correlation id, resolved or not, is a duplicate.
func (l *Ledger) Create(sess domain.Session, nq domain.NewQuery) (domain.PendingServerQuery, error) {
	if nq.CorrelationID == "" {
		return domain.PendingServerQuery{}, domain.Malformed("correlation_id", "empty")
	}
	if !nq.Kind.Valid() {
		return domain.PendingServerQuery{}, domain.Malformed("kind", "unknown query kind %q", nq.Kind)
	}

	tx := sess.Txn()
	_, exists, err := l.store.LoadQuery(tx, nq.CorrelationID)
	if err != nil {
		return domain.PendingServerQuery{}, fmt.Errorf("load query: %w", err)
	}
	if exists {
		return domain.PendingServerQuery{}, fmt.Errorf("%w: %s", domain.ErrDuplicateCorrelationID, nq.CorrelationID)
	}

	q := domain.PendingServerQuery{
		CorrelationID: nq.CorrelationID,
		OwnedIdentity: nq.OwnedIdentity,
		Kind:          nq.Kind,
		Request:       bytes.Clone(nq.Request),
		State:         domain.QueryCreated,
		CreatedAt:     l.now().UTC(),
	}
	if err := l.store.SaveQuery(tx, q); err != nil {
		return domain.PendingServerQuery{}, fmt.Errorf("save query: %w", err)
	}
	l.metrics.QueryTransition(string(domain.QueryCreated))
	return q, nil
}

// RecordAttempt counts a transmission attempt and moves the query to Sent.
// Attempts on an already Sent query still count.
func (l *Ledger) RecordAttempt(sess domain.Session, id domain.CorrelationID) (domain.AttemptOutcome, error) {
	tx := sess.Txn()
	q, ok, err := l.store.LoadQuery(tx, id)
	if err != nil {
		return 0, fmt.Errorf("load query: %w", err)
	}
	switch {
	case !ok:
		return domain.AttemptNotFound, nil
	case q.State == domain.QueryResolved:
		return domain.AttemptAlreadyResolved, nil
	case !q.Retryable():
		return domain.AttemptNotRetryable, nil
	}

	q.Attempts++
	q.LastAttemptAt = l.now().UTC()
	if q.State != domain.QuerySent {
		q.State = domain.QuerySent
		l.metrics.QueryTransition(string(domain.QuerySent))
	}
	q.Failure = nil
	if err := l.store.SaveQuery(tx, q); err != nil {
		return 0, fmt.Errorf("save query: %w", err)
	}
	return domain.AttemptRecorded, nil
}

// Resolve stores the response and notifies the pending-query listener the
// first time. The record is kept until the caller deletes it.
func (l *Ledger) Resolve(
	sess domain.Session,
	id domain.CorrelationID,
	response []byte,
) (domain.ResolveOutcome, error) {
	tx := sess.Txn()
	q, ok, err := l.store.LoadQuery(tx, id)
	if err != nil {
		return 0, fmt.Errorf("load query: %w", err)
	}
	if !ok {
		return domain.ResolveNotFound, nil
	}
	if q.State == domain.QueryResolved {
		l.logger.Debug("duplicate response", zap.String("correlation_id", id.String()))
		return domain.AlreadyResolved, nil
	}

	q.State = domain.QueryResolved
	q.Response = bytes.Clone(response)
	q.ResolvedAt = l.now().UTC()
	q.Failure = nil
	if err := l.store.SaveQuery(tx, q); err != nil {
		return 0, fmt.Errorf("save query: %w", err)
	}
	sess.Enqueue(domain.PendingQueryEvent{
		CorrelationID: q.CorrelationID,
		OwnedIdentity: q.OwnedIdentity,
		Kind:          q.Kind,
		State:         q.State,
		Response:      q.Response,
	})
	l.metrics.QueryTransition(string(domain.QueryResolved))
	return domain.Resolved, nil
}

// Fail moves the query to Failed. A retryable reason lets a later
// RecordAttempt resume it; a non-retryable one leaves deletion to the caller.
func (l *Ledger) Fail(
	sess domain.Session,
	id domain.CorrelationID,
	reason domain.FailureReason,
) (domain.FailOutcome, error) {
	tx := sess.Txn()
	q, ok, err := l.store.LoadQuery(tx, id)
	if err != nil {
		return 0, fmt.Errorf("load query: %w", err)
	}
	if !ok {
		return domain.FailNotFound, nil
	}
	if q.State == domain.QueryResolved {
		return domain.FailAlreadyResolved, nil
	}

	q.State = domain.QueryFailed
	q.Failure = &reason
	if err := l.store.SaveQuery(tx, q); err != nil {
		return 0, fmt.Errorf("save query: %w", err)
	}
	sess.Enqueue(domain.PendingQueryEvent{
		CorrelationID: q.CorrelationID,
		OwnedIdentity: q.OwnedIdentity,
		Kind:          q.Kind,
		State:         q.State,
		Failure:       q.Failure,
	})
	l.metrics.QueryTransition(string(domain.QueryFailed))
	return domain.FailRecorded, nil
}

// ListUnresolved yields queries that may need re-transmission: Created,
// Sent or retryably Failed, with no activity since olderThan. Each range
// over the sequence rescans the store.
func (l *Ledger) ListUnresolved(tx domain.Txn, olderThan time.Time) iter.Seq2[domain.PendingServerQuery, error] {
	return func(yield func(domain.PendingServerQuery, error) bool) {
		for q, err := range l.store.ListQueries(tx) {
			if err != nil {
				yield(domain.PendingServerQuery{}, err)
				return
			}
			if !q.Retryable() || !q.LastActivity().Before(olderThan) {
				continue
			}
			if !yield(q, nil) {
				return
			}
		}
	}
}

// All yields every stored query.
func (l *Ledger) All(tx domain.Txn) iter.Seq2[domain.PendingServerQuery, error] {
	return l.store.ListQueries(tx)
}

// Get returns one query.
func (l *Ledger) Get(tx domain.Txn, id domain.CorrelationID) (domain.PendingServerQuery, bool, error) {
	return l.store.LoadQuery(tx, id)
}

// Delete removes a query and reports whether it existed.
func (l *Ledger) Delete(sess domain.Session, id domain.CorrelationID) (bool, error) {
	tx := sess.Txn()
	_, ok, err := l.store.LoadQuery(tx, id)
	if err != nil || !ok {
		return false, err
	}
	if err := l.store.DeleteQuery(tx, id); err != nil {
		return false, fmt.Errorf("delete query: %w", err)
	}
	return true, nil
}
