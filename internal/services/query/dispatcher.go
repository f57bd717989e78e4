package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ciphersync/internal/domain"
	"ciphersync/internal/services/session"
)

// RetryPolicy shapes the Dispatcher's retransmission schedule.
type RetryPolicy struct {
	// BaseDelay is the wait after the first attempt; it doubles per attempt.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxAttempts is the number of transmissions after which a query is
	// failed for good. Zero means no limit.
	MaxAttempts int
}

// DefaultRetryPolicy is used when a zero policy is supplied.
var DefaultRetryPolicy = RetryPolicy{
	BaseDelay:   5 * time.Second,
	MaxDelay:    10 * time.Minute,
	MaxAttempts: 8,
}

// Backoff returns the delay before attempt number attempts+1.
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempts; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Dispatcher transmits queries recorded in the Ledger and retries the ones
// left unresolved.
type Dispatcher struct {
	sessions  *session.Manager
	ledger    *Ledger
	transport domain.QueryTransport
	delegates domain.Delegates
	listeners domain.Listeners
	policy    RetryPolicy
	logger    *zap.Logger
	now       func() time.Time
}

// NewDispatcher wires a Dispatcher. Sessions it opens use d and l.
func NewDispatcher(
	sessions *session.Manager,
	ledger *Ledger,
	transport domain.QueryTransport,
	d domain.Delegates,
	l domain.Listeners,
	policy RetryPolicy,
	logger *zap.Logger,
) *Dispatcher {
	if policy == (RetryPolicy{}) {
		policy = DefaultRetryPolicy
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sessions:  sessions,
		ledger:    ledger,
		transport: transport,
		delegates: d,
		listeners: l,
		policy:    policy,
		logger:    logger.With(zap.String("module", "query")),
		now:       time.Now,
	}
}

// Send persists nq together with its first attempt, then transmits it and
// records the outcome. A transmission failure is recorded on the query and
// is not returned as an error; the returned record carries the final state.
func (d *Dispatcher) Send(ctx context.Context, nq domain.NewQuery) (domain.PendingServerQuery, error) {
	if nq.CorrelationID == "" {
		nq.CorrelationID = NewCorrelationID()
	}

	var q domain.PendingServerQuery
	err := d.sessions.Run(ctx, d.delegates, d.listeners, func(sess *session.Session) error {
		created, err := d.ledger.Create(sess, nq)
		if err != nil {
			return err
		}
		if _, err := d.ledger.RecordAttempt(sess, created.CorrelationID); err != nil {
			return err
		}
		q = created
		return nil
	})
	if err != nil {
		return domain.PendingServerQuery{}, err
	}
	return d.transmit(ctx, q)
}

// RetryDue retransmits every unresolved query whose backoff has elapsed and
// fails for good those that ran out of attempts. It returns the number of
// queries retransmitted.
func (d *Dispatcher) RetryDue(ctx context.Context) (int, error) {
	now := d.now()
	var due []domain.PendingServerQuery
	err := d.sessions.View(ctx, func(tx domain.Txn) error {
		for q, err := range d.ledger.ListUnresolved(tx, now) {
			if err != nil {
				return err
			}
			if now.Sub(q.LastActivity()) >= d.policy.Backoff(q.Attempts) {
				due = append(due, q)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, q := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if d.policy.MaxAttempts > 0 && q.Attempts >= d.policy.MaxAttempts {
			d.giveUp(ctx, q)
			continue
		}

		var outcome domain.AttemptOutcome
		err := d.sessions.Run(ctx, d.delegates, d.listeners, func(sess *session.Session) error {
			var err error
			outcome, err = d.ledger.RecordAttempt(sess, q.CorrelationID)
			return err
		})
		if err != nil {
			return sent, err
		}
		if outcome != domain.AttemptRecorded {
			continue
		}
		if _, err := d.transmit(ctx, q); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (d *Dispatcher) giveUp(ctx context.Context, q domain.PendingServerQuery) {
	reason := domain.FailureReason{
		Message:   fmt.Sprintf("gave up after %d attempts", q.Attempts),
		Retryable: false,
	}
	err := d.sessions.Run(ctx, d.delegates, d.listeners, func(sess *session.Session) error {
		_, err := d.ledger.Fail(sess, q.CorrelationID, reason)
		return err
	})
	if err != nil {
		d.logger.Warn("record final failure", zap.String("correlation_id", q.CorrelationID.String()), zap.Error(err))
	}
}

// transmit sends q and records Resolve or Fail in a new session.
func (d *Dispatcher) transmit(ctx context.Context, q domain.PendingServerQuery) (domain.PendingServerQuery, error) {
	token, err := d.token(ctx, q.OwnedIdentity)
	var resp []byte
	if err == nil {
		resp, err = d.transport.SendQuery(ctx, token, q)
	}

	var final domain.PendingServerQuery
	runErr := d.sessions.Run(ctx, d.delegates, d.listeners, func(sess *session.Session) error {
		if err == nil {
			if _, rerr := d.ledger.Resolve(sess, q.CorrelationID, resp); rerr != nil {
				return rerr
			}
		} else {
			reason := domain.FailureReason{
				Message:   err.Error(),
				Retryable: !errors.Is(err, domain.ErrRejected),
			}
			if _, ferr := d.ledger.Fail(sess, q.CorrelationID, reason); ferr != nil {
				return ferr
			}
		}
		rec, _, lerr := d.ledger.Get(sess.Txn(), q.CorrelationID)
		final = rec
		return lerr
	})
	if runErr != nil {
		return domain.PendingServerQuery{}, runErr
	}
	if err != nil {
		d.logger.Info("query transmission failed",
			zap.String("correlation_id", q.CorrelationID.String()),
			zap.Bool("retryable", final.Failure != nil && final.Failure.Retryable),
			zap.Error(err),
		)
	}
	return final, nil
}

func (d *Dispatcher) token(ctx context.Context, owned domain.OwnedIdentity) (string, error) {
	if d.delegates.ServerSession == nil || owned == "" {
		return "", nil
	}
	return d.delegates.ServerSession.ServerSessionToken(ctx, owned)
}
