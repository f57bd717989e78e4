package inboxsync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"ciphersync/internal/domain"
	"ciphersync/internal/services/inbox"
	"ciphersync/internal/services/session"
)

// Options tunes a Syncer.
type Options struct {
	// FetchLimit caps how many queued messages are listed per run.
	FetchLimit int
	// ChunkSize is the largest attachment range requested at once.
	ChunkSize int64
	// Server is recorded on ingested messages.
	Server domain.ServerURL
}

// DefaultOptions is used for zero fields.
var DefaultOptions = Options{FetchLimit: 100, ChunkSize: 256 << 10}

// Report summarises one Sync run.
type Report struct {
	Listed               int
	Created              int
	AlreadyPresent       int
	ExtendedPayloads     int
	ChunksStored         int
	AttachmentsCompleted int
	Marked               int
	Deleted              int
	// Skipped counts messages the relay sent in a malformed shape.
	Skipped int
}

// Syncer moves messages from the relay into the local inbox.
type Syncer struct {
	sessions  *session.Manager
	inbox     *inbox.Service
	transport domain.InboxTransport
	delegates domain.Delegates
	listeners domain.Listeners
	opts      Options
	logger    *zap.Logger
}

// NewSyncer wires a Syncer. Sessions it opens use d and l.
func NewSyncer(
	sessions *session.Manager,
	svc *inbox.Service,
	transport domain.InboxTransport,
	d domain.Delegates,
	l domain.Listeners,
	opts Options,
	logger *zap.Logger,
) *Syncer {
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = DefaultOptions.FetchLimit
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions.ChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		sessions:  sessions,
		inbox:     svc,
		transport: transport,
		delegates: d,
		listeners: l,
		opts:      opts,
		logger:    logger.With(zap.String("module", "inboxsync")),
	}
}

// Sync runs one synchronisation for owned.
//
// Steps:
//  1. Queue DELETEs for messages left marked by a previous run.
//  2. List the relay queue and ingest every message in one session.
//  3. Download missing extended payloads and attachment ranges.
//  4. Mark fully received messages; the committed mark events queue DELETEs.
//  5. Issue the queued DELETEs and confirm each in its own session.
//
// Transport failures in steps 3 and 5 are logged and left for the next run.
func (s *Syncer) Sync(ctx context.Context, owned domain.OwnedIdentity) (Report, error) {
	var rep Report
	token, err := s.token(ctx, owned)
	if err != nil {
		return rep, err
	}

	deletes := &deleteQueue{}
	if err := s.recoverPending(ctx, owned, deletes); err != nil {
		return rep, err
	}

	listed, err := s.transport.FetchMessages(ctx, token, owned, s.opts.FetchLimit)
	if err != nil {
		return rep, fmt.Errorf("fetch messages: %w", err)
	}
	rep.Listed = len(listed)
	if err := s.ingest(ctx, owned, listed, &rep); err != nil {
		return rep, err
	}

	for _, sm := range listed {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := s.download(ctx, token, owned, sm, &rep); err != nil {
			if isFatal(err) {
				return rep, err
			}
			s.logger.Warn("download incomplete",
				zap.String("owned", owned.String()),
				zap.String("uid", sm.UID.String()),
				zap.Error(err),
			)
		}
	}

	if err := s.markReceived(ctx, owned, listed, deletes, &rep); err != nil {
		return rep, err
	}
	if err := s.deleteQueued(ctx, token, owned, deletes, &rep); err != nil {
		return rep, err
	}
	return rep, nil
}

func (s *Syncer) recoverPending(ctx context.Context, owned domain.OwnedIdentity, q *deleteQueue) error {
	return s.sessions.View(ctx, func(tx domain.Txn) error {
		for msg, err := range s.inbox.PendingDeletions(tx, owned) {
			if err != nil {
				return err
			}
			q.add(msg.UID)
		}
		return nil
	})
}

func (s *Syncer) ingest(ctx context.Context, owned domain.OwnedIdentity, listed []domain.ServerMessage, rep *Report) error {
	if len(listed) == 0 {
		return nil
	}
	return s.sessions.Run(ctx, s.delegates, s.listeners, func(sess *session.Session) error {
		for _, sm := range listed {
			outcome, err := s.inbox.IngestMessage(sess, domain.IncomingMessage{
				OwnedIdentity:    owned,
				UID:              sm.UID,
				Server:           s.opts.Server,
				EncryptedPayload: sm.EncryptedPayload,
				ArrivedAt:        time.UnixMilli(sm.ArrivedAt).UTC(),
				Attachments:      sm.Attachments,
			})
			if domain.IsMalformed(err) {
				rep.Skipped++
				s.logger.Warn("skip malformed message", zap.String("uid", sm.UID.String()), zap.Error(err))
				continue
			}
			if err != nil {
				return err
			}
			switch outcome {
			case domain.IngestCreated:
				rep.Created++
			case domain.IngestAlreadyPresent:
				rep.AlreadyPresent++
			}
		}
		return nil
	})
}

// download fetches whatever sm still lacks locally.
func (s *Syncer) download(ctx context.Context, token string, owned domain.OwnedIdentity, sm domain.ServerMessage, rep *Report) error {
	var (
		msg   domain.InboxMessage
		found bool
		atts  []domain.InboxAttachment
	)
	err := s.sessions.View(ctx, func(tx domain.Txn) error {
		var err error
		msg, found, err = s.inbox.Message(tx, owned, sm.UID)
		if err != nil || !found {
			return err
		}
		atts, err = s.inbox.Attachments(tx, owned, sm.UID)
		return err
	})
	if err != nil {
		return fatal(err)
	}
	if !found || msg.DeletionRequested {
		return nil
	}

	if sm.HasExtendedPayload && !msg.ExtendedPayloadAvailable {
		payload, err := s.transport.FetchExtendedPayload(ctx, token, owned, sm.UID)
		if err != nil {
			return fmt.Errorf("fetch extended payload: %w", err)
		}
		err = s.sessions.Run(ctx, s.delegates, s.listeners, func(sess *session.Session) error {
			_, err := s.inbox.IngestExtendedPayload(sess, owned, sm.UID, payload)
			return err
		})
		if err != nil {
			return fatalUnlessMalformed(err)
		}
		rep.ExtendedPayloads++
	}

	for _, att := range atts {
		if att.Completed {
			continue
		}
		if err := s.downloadAttachment(ctx, token, att, rep); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) downloadAttachment(ctx context.Context, token string, att domain.InboxAttachment, rep *Report) error {
	for _, gap := range att.MissingRanges() {
		for _, rng := range split(gap, s.opts.ChunkSize) {
			data, err := s.transport.FetchAttachmentRange(ctx, token, att.OwnedIdentity, att.UID, att.Index, rng)
			if err != nil {
				return fmt.Errorf("fetch attachment %d range [%d,%d): %w", att.Index, rng.Offset, rng.End(), err)
			}
			var outcome domain.ChunkOutcome
			err = s.sessions.Run(ctx, s.delegates, s.listeners, func(sess *session.Session) error {
				var err error
				outcome, err = s.inbox.IngestAttachmentChunk(sess, att.OwnedIdentity, att.UID, att.Index, rng, data)
				return err
			})
			if err != nil {
				return fatalUnlessMalformed(err)
			}
			switch outcome {
			case domain.ChunkPartial:
				rep.ChunksStored++
			case domain.ChunkCompleted:
				rep.ChunksStored++
				rep.AttachmentsCompleted++
				return nil
			default:
				return nil
			}
		}
	}
	return nil
}

// markReceived marks every listed message whose content is fully stored.
func (s *Syncer) markReceived(
	ctx context.Context,
	owned domain.OwnedIdentity,
	listed []domain.ServerMessage,
	q *deleteQueue,
	rep *Report,
) error {
	var ready []domain.MessageUID
	err := s.sessions.View(ctx, func(tx domain.Txn) error {
		for _, sm := range listed {
			msg, ok, err := s.inbox.Message(tx, owned, sm.UID)
			if err != nil {
				return err
			}
			if !ok || msg.DeletionRequested {
				continue
			}
			if sm.HasExtendedPayload && !msg.ExtendedPayloadAvailable {
				continue
			}
			atts, err := s.inbox.Attachments(tx, owned, sm.UID)
			if err != nil {
				return err
			}
			if slices.ContainsFunc(atts, func(a domain.InboxAttachment) bool { return !a.Completed }) {
				continue
			}
			ready = append(ready, sm.UID)
		}
		return nil
	})
	if err != nil || len(ready) == 0 {
		return err
	}

	return s.sessions.Run(ctx, s.delegates, s.markListeners(q), func(sess *session.Session) error {
		for _, uid := range ready {
			outcome, err := s.inbox.MarkListedAndScheduleDeletion(sess, owned, uid)
			if err != nil {
				return err
			}
			if outcome == domain.MarkApplied {
				rep.Marked++
			}
		}
		return nil
	})
}

// markListeners queues a DELETE for every committed mark event before
// forwarding it.
func (s *Syncer) markListeners(q *deleteQueue) domain.Listeners {
	l := s.listeners
	next := l.MarkListedAndDelete
	l.MarkListedAndDelete = domain.MarkListedAndDeleteListenerFunc(func(e domain.MarkListedAndDeleteEvent) {
		q.add(e.UID)
		if next != nil {
			next.MessageMarkedListedAndDelete(e)
		}
	})
	return l
}

func (s *Syncer) deleteQueued(
	ctx context.Context,
	token string,
	owned domain.OwnedIdentity,
	q *deleteQueue,
	rep *Report,
) error {
	for _, uid := range q.drain() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.transport.DeleteMessage(ctx, token, owned, uid); err != nil {
			s.logger.Warn("server delete failed; will retry",
				zap.String("owned", owned.String()),
				zap.String("uid", uid.String()),
				zap.Error(err),
			)
			continue
		}
		var outcome domain.DeleteOutcome
		err := s.sessions.Run(ctx, s.delegates, s.listeners, func(sess *session.Session) error {
			var err error
			outcome, err = s.inbox.ConfirmServerDeletion(sess, owned, uid)
			return err
		})
		if err != nil {
			return err
		}
		if outcome == domain.Deleted {
			rep.Deleted++
		}
	}
	return nil
}

func (s *Syncer) token(ctx context.Context, owned domain.OwnedIdentity) (string, error) {
	if s.delegates.ServerSession == nil {
		return "", nil
	}
	token, err := s.delegates.ServerSession.ServerSessionToken(ctx, owned)
	if err != nil {
		return "", fmt.Errorf("server session: %w", err)
	}
	return token, nil
}

// split cuts rng into consecutive ranges of at most size bytes.
func split(rng domain.ByteRange, size int64) []domain.ByteRange {
	var out []domain.ByteRange
	for off := rng.Offset; off < rng.End(); off += size {
		n := min(size, rng.End()-off)
		out = append(out, domain.ByteRange{Offset: off, Length: n})
	}
	return out
}

// deleteQueue collects message uids in first-seen order.
type deleteQueue struct {
	mu   sync.Mutex
	uids []domain.MessageUID
}

func (q *deleteQueue) add(uid domain.MessageUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !slices.Contains(q.uids, uid) {
		q.uids = append(q.uids, uid)
	}
}

func (q *deleteQueue) drain() []domain.MessageUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.uids
	q.uids = nil
	return out
}

// fatalError marks store failures that abort the run.
type fatalError struct{ err error }

func (e fatalError) Error() string { return e.err.Error() }
func (e fatalError) Unwrap() error { return e.err }

func fatal(err error) error { return fatalError{err: err} }

func fatalUnlessMalformed(err error) error {
	if domain.IsMalformed(err) {
		return err
	}
	return fatal(err)
}

func isFatal(err error) bool {
	var f fatalError
	return errors.As(err, &f)
}
