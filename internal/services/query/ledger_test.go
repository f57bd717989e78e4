package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphersync/internal/domain"
	"ciphersync/internal/services/session"
	"ciphersync/internal/services/session/sessiontest"
	"ciphersync/internal/store"
)

type clock struct{ t time.Time }

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func (c *clock) install(l *Ledger) *clock {
	l.now = c.Now
	return c
}

func (c *clock) installD(d *Dispatcher) *clock {
	d.now = c.Now
	return c
}

type ledgerFixture struct {
	t      *testing.T
	mgr    *session.Manager
	ledger *Ledger
	rec    *sessiontest.Recorder
	clock  *clock
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	l := NewLedger(store.NewQueryKVStore(), nil, nil)
	return &ledgerFixture{
		t:      t,
		mgr:    sessiontest.NewManager(t),
		ledger: l,
		rec:    &sessiontest.Recorder{},
		clock:  newClock().install(l),
	}
}

func (f *ledgerFixture) run(fn func(*session.Session)) {
	f.t.Helper()
	require.NoError(f.t, f.mgr.Run(context.Background(), sessiontest.Delegates(), f.rec.Listeners(),
		func(s *session.Session) error { fn(s); return nil }))
}

func (f *ledgerFixture) get(id domain.CorrelationID) domain.PendingServerQuery {
	f.t.Helper()
	var q domain.PendingServerQuery
	require.NoError(f.t, f.mgr.View(context.Background(), func(tx domain.Txn) error {
		var ok bool
		var err error
		q, ok, err = f.ledger.Get(tx, id)
		require.True(f.t, ok)
		return err
	}))
	return q
}

func TestLedger_QueryRoundTrip(t *testing.T) {
	f := newLedgerFixture(t)

	f.run(func(s *session.Session) {
		q, err := f.ledger.Create(s, domain.NewQuery{CorrelationID: "q1", Kind: domain.QueryDeviceManagement, Request: []byte("P")})
		require.NoError(t, err)
		assert.Equal(t, domain.QueryCreated, q.State)

		out, err := f.ledger.RecordAttempt(s, "q1")
		require.NoError(t, err)
		assert.Equal(t, domain.AttemptRecorded, out)

		res, err := f.ledger.Resolve(s, "q1", []byte("R"))
		require.NoError(t, err)
		assert.Equal(t, domain.Resolved, res)
	})

	f.run(func(s *session.Session) {
		res, err := f.ledger.Resolve(s, "q1", []byte("R2"))
		require.NoError(t, err)
		assert.Equal(t, domain.AlreadyResolved, res)
	})

	events := f.rec.Events()
	require.Len(t, events, 1, "listener fires exactly once")
	ev := events[0].(domain.PendingQueryEvent)
	assert.Equal(t, domain.CorrelationID("q1"), ev.CorrelationID)
	assert.Equal(t, []byte("R"), ev.Response)

	q := f.get("q1")
	assert.Equal(t, domain.QueryResolved, q.State)
	assert.Equal(t, []byte("R"), q.Response)
	assert.Equal(t, 1, q.Attempts)
}

func TestLedger_CreateDuplicate(t *testing.T) {
	f := newLedgerFixture(t)
	nq := domain.NewQuery{CorrelationID: "dup", Kind: domain.QueryGroup}

	f.run(func(s *session.Session) {
		_, err := f.ledger.Create(s, nq)
		require.NoError(t, err)
		_, err = f.ledger.Create(s, nq)
		assert.ErrorIs(t, err, domain.ErrDuplicateCorrelationID)

		_, err = f.ledger.Resolve(s, "dup", nil)
		require.NoError(t, err)
	})
	f.run(func(s *session.Session) {
		_, err := f.ledger.Create(s, nq)
		assert.ErrorIs(t, err, domain.ErrDuplicateCorrelationID, "resolved records are duplicates too")
	})
}

func TestLedger_CreateMalformed(t *testing.T) {
	f := newLedgerFixture(t)
	f.run(func(s *session.Session) {
		_, err := f.ledger.Create(s, domain.NewQuery{Kind: domain.QueryOther})
		assert.True(t, domain.IsMalformed(err))
		_, err = f.ledger.Create(s, domain.NewQuery{CorrelationID: "x", Kind: "bogus"})
		assert.True(t, domain.IsMalformed(err))
	})
}

func TestLedger_AttemptsAndFailures(t *testing.T) {
	f := newLedgerFixture(t)
	f.run(func(s *session.Session) {
		out, err := f.ledger.RecordAttempt(s, "missing")
		require.NoError(t, err)
		assert.Equal(t, domain.AttemptNotFound, out)

		_, err = f.ledger.Create(s, domain.NewQuery{CorrelationID: "a", Kind: domain.QueryOther})
		require.NoError(t, err)
		for range 2 {
			out, err = f.ledger.RecordAttempt(s, "a")
			require.NoError(t, err)
			assert.Equal(t, domain.AttemptRecorded, out)
		}

		fo, err := f.ledger.Fail(s, "a", domain.FailureReason{Message: "timeout", Retryable: true})
		require.NoError(t, err)
		assert.Equal(t, domain.FailRecorded, fo)
		out, err = f.ledger.RecordAttempt(s, "a")
		require.NoError(t, err)
		assert.Equal(t, domain.AttemptRecorded, out, "retryable failure resumes")

		_, err = f.ledger.Fail(s, "a", domain.FailureReason{Message: "bad request"})
		require.NoError(t, err)
		out, err = f.ledger.RecordAttempt(s, "a")
		require.NoError(t, err)
		assert.Equal(t, domain.AttemptNotRetryable, out)

		fo, err = f.ledger.Fail(s, "missing", domain.FailureReason{})
		require.NoError(t, err)
		assert.Equal(t, domain.FailNotFound, fo)
	})

	q := f.get("a")
	assert.Equal(t, domain.QueryFailed, q.State)
	assert.Equal(t, 3, q.Attempts)
	require.NotNil(t, q.Failure)
	assert.False(t, q.Failure.Retryable)

	f.run(func(s *session.Session) {
		existed, err := f.ledger.Delete(s, "a")
		require.NoError(t, err)
		assert.True(t, existed)
		existed, err = f.ledger.Delete(s, "a")
		require.NoError(t, err)
		assert.False(t, existed)
	})
}

func TestLedger_ResolvedCannotFailOrRetry(t *testing.T) {
	f := newLedgerFixture(t)
	f.run(func(s *session.Session) {
		_, err := f.ledger.Create(s, domain.NewQuery{CorrelationID: "r", Kind: domain.QueryOther})
		require.NoError(t, err)
		_, err = f.ledger.Resolve(s, "r", []byte("ok"))
		require.NoError(t, err)

		fo, err := f.ledger.Fail(s, "r", domain.FailureReason{Message: "late"})
		require.NoError(t, err)
		assert.Equal(t, domain.FailAlreadyResolved, fo)
		out, err := f.ledger.RecordAttempt(s, "r")
		require.NoError(t, err)
		assert.Equal(t, domain.AttemptAlreadyResolved, out)
		ro, err := f.ledger.Resolve(s, "missing", nil)
		require.NoError(t, err)
		assert.Equal(t, domain.ResolveNotFound, ro)
	})
}

func TestLedger_ListUnresolved(t *testing.T) {
	f := newLedgerFixture(t)
	start := f.clock.Now()

	f.run(func(s *session.Session) {
		for _, id := range []domain.CorrelationID{"created", "sent", "retryable", "final", "resolved"} {
			_, err := f.ledger.Create(s, domain.NewQuery{CorrelationID: id, Kind: domain.QueryOther})
			require.NoError(t, err)
		}
		f.clock.Advance(time.Minute)
		for _, id := range []domain.CorrelationID{"sent", "retryable", "final"} {
			_, err := f.ledger.RecordAttempt(s, id)
			require.NoError(t, err)
		}
		_, err := f.ledger.Fail(s, "retryable", domain.FailureReason{Retryable: true})
		require.NoError(t, err)
		_, err = f.ledger.Fail(s, "final", domain.FailureReason{Retryable: false})
		require.NoError(t, err)
		_, err = f.ledger.Resolve(s, "resolved", nil)
		require.NoError(t, err)
	})

	collect := func(olderThan time.Time) []domain.CorrelationID {
		var ids []domain.CorrelationID
		require.NoError(t, f.mgr.View(context.Background(), func(tx domain.Txn) error {
			seq := f.ledger.ListUnresolved(tx, olderThan)
			// Restartable: a second pass yields the same ids.
			for pass := range 2 {
				var got []domain.CorrelationID
				for q, err := range seq {
					if err != nil {
						return err
					}
					got = append(got, q.CorrelationID)
				}
				if pass == 0 {
					ids = got
				} else {
					assert.Equal(t, ids, got)
				}
			}
			return nil
		}))
		return ids
	}

	assert.Equal(t, []domain.CorrelationID{"created"}, collect(start.Add(30*time.Second)))
	assert.Equal(t, []domain.CorrelationID{"created", "retryable", "sent"}, collect(start.Add(2*time.Minute)))
}
