package inbox

import (
	"bytes"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"ciphersync/internal/domain"
	"ciphersync/internal/metrics"
)

// Service is the inbox intake component.
type Service struct {
	store   domain.InboxStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New returns an inbox Service persisting through store.
func New(store domain.InboxStore, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		logger:  logger.With(zap.String("module", "inbox")),
		metrics: m,
		now:     time.Now,
	}
}

// IngestMessage inserts in unless a message with the same (owned, uid)
// already exists. Declared attachments are created with the message.
//
// Steps:
//  1. Validate the input; nothing is written for malformed input.
//  2. Ask the identity delegate whether the owned identity is ours.
//  3. Insert-if-absent the message and its attachments.
//  4. Enqueue an InboxMessageEvent for the new message.
func (s *Service) IngestMessage(sess domain.Session, in domain.IncomingMessage) (domain.IngestOutcome, error) {
	if err := validateIncoming(in); err != nil {
		return 0, err
	}
	if err := s.checkOwned(sess, in.OwnedIdentity); err != nil {
		return 0, err
	}

	tx := sess.Txn()
	_, exists, err := s.store.LoadMessage(tx, in.OwnedIdentity, in.UID)
	if err != nil {
		return 0, fmt.Errorf("load message: %w", err)
	}
	if exists {
		s.metrics.Ingested("message", domain.IngestAlreadyPresent.String())
		s.logger.Debug("duplicate delivery",
			zap.String("owned", in.OwnedIdentity.String()),
			zap.String("uid", in.UID.String()),
		)
		return domain.IngestAlreadyPresent, nil
	}

	arrived := in.ArrivedAt
	if arrived.IsZero() {
		arrived = s.now()
	}
	msg := domain.InboxMessage{
		OwnedIdentity:    in.OwnedIdentity,
		UID:              in.UID,
		Server:           in.Server,
		EncryptedPayload: bytes.Clone(in.EncryptedPayload),
		ArrivedAt:        arrived.UTC(),
		AttachmentCount:  len(in.Attachments),
	}
	if err := s.store.SaveMessage(tx, msg); err != nil {
		return 0, fmt.Errorf("save message: %w", err)
	}
	for _, a := range in.Attachments {
		att := domain.InboxAttachment{
			OwnedIdentity: in.OwnedIdentity,
			UID:           in.UID,
			Index:         a.Index,
			ExpectedSize:  a.ExpectedSize,
			Completed:     a.ExpectedSize == 0,
		}
		if err := s.store.SaveAttachment(tx, att); err != nil {
			return 0, fmt.Errorf("save attachment %d: %w", a.Index, err)
		}
	}

	sess.Enqueue(domain.InboxMessageEvent{
		OwnedIdentity: msg.OwnedIdentity,
		UID:           msg.UID,
		ArrivedAt:     msg.ArrivedAt,
	})
	s.metrics.Ingested("message", domain.IngestCreated.String())
	return domain.IngestCreated, nil
}

// IngestExtendedPayload attaches payload to an existing message. A message
// that has not arrived yet is reported as ExtendedPayloadMessageNotFound so
// the caller can retry later. Re-delivering the same payload is Applied
// without a second notification.
func (s *Service) IngestExtendedPayload(
	sess domain.Session,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
	payload []byte,
) (domain.ExtendedPayloadOutcome, error) {
	if err := validateKey(owned, uid); err != nil {
		return 0, err
	}
	if len(payload) == 0 {
		return 0, domain.Malformed("extended_payload", "empty")
	}

	tx := sess.Txn()
	msg, ok, err := s.store.LoadMessage(tx, owned, uid)
	if err != nil {
		return 0, fmt.Errorf("load message: %w", err)
	}
	if !ok {
		s.metrics.Ingested("extended_payload", domain.ExtendedPayloadMessageNotFound.String())
		return domain.ExtendedPayloadMessageNotFound, nil
	}
	if msg.ExtendedPayloadAvailable && bytes.Equal(msg.ExtendedPayload, payload) {
		return domain.ExtendedPayloadApplied, nil
	}

	msg.ExtendedPayloadAvailable = true
	msg.ExtendedPayload = bytes.Clone(payload)
	if err := s.store.SaveMessage(tx, msg); err != nil {
		return 0, fmt.Errorf("save message: %w", err)
	}
	sess.Enqueue(domain.ExtendedPayloadEvent{OwnedIdentity: owned, UID: uid, Payload: msg.ExtendedPayload})
	s.metrics.Ingested("extended_payload", domain.ExtendedPayloadApplied.String())
	return domain.ExtendedPayloadApplied, nil
}

// IngestAttachmentChunk stores data for rng of attachment index and
// recomputes completion. Completion and progress are both notified.
func (s *Service) IngestAttachmentChunk(
	sess domain.Session,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
	index int,
	rng domain.ByteRange,
	data []byte,
) (domain.ChunkOutcome, error) {
	if err := validateKey(owned, uid); err != nil {
		return 0, err
	}
	switch {
	case index < 0:
		return 0, domain.Malformed("index", "negative attachment index %d", index)
	case rng.Offset < 0:
		return 0, domain.Malformed("range", "negative offset %d", rng.Offset)
	case rng.Length <= 0:
		return 0, domain.Malformed("range", "non-positive length %d", rng.Length)
	case int64(len(data)) != rng.Length:
		return 0, domain.Malformed("data", "got %d bytes for a %d byte range", len(data), rng.Length)
	}

	tx := sess.Txn()
	att, ok, err := s.store.LoadAttachment(tx, owned, uid, index)
	if err != nil {
		return 0, fmt.Errorf("load attachment: %w", err)
	}
	if !ok {
		s.metrics.Ingested("chunk", domain.ChunkAttachmentNotFound.String())
		return domain.ChunkAttachmentNotFound, nil
	}
	if att.Completed {
		s.metrics.Ingested("chunk", domain.ChunkAlreadyComplete.String())
		return domain.ChunkAlreadyComplete, nil
	}
	if rng.End() > att.ExpectedSize {
		return 0, domain.Malformed("range",
			"range [%d,%d) exceeds expected size %d", rng.Offset, rng.End(), att.ExpectedSize)
	}

	if err := s.store.SaveAttachmentChunk(tx, owned, uid, index, rng.Offset, data); err != nil {
		return 0, fmt.Errorf("save chunk: %w", err)
	}
	att.ReceivedRanges = mergeRange(att.ReceivedRanges, rng)
	att.Completed = covers(att.ReceivedRanges, att.ExpectedSize)
	if err := s.store.SaveAttachment(tx, att); err != nil {
		return 0, fmt.Errorf("save attachment: %w", err)
	}

	sess.Enqueue(domain.InboxAttachmentEvent{
		OwnedIdentity: owned,
		UID:           uid,
		Index:         index,
		ReceivedBytes: att.ReceivedBytes(),
		ExpectedSize:  att.ExpectedSize,
		Completed:     att.Completed,
	})
	outcome := domain.ChunkPartial
	if att.Completed {
		outcome = domain.ChunkCompleted
	}
	s.metrics.Ingested("chunk", outcome.String())
	return outcome, nil
}

// MarkListedAndScheduleDeletion sets the listed and deletion-requested flags.
// The enqueued MarkListedAndDeleteEvent tells downstream logic it may delete
// the message on the server once the session has committed.
func (s *Service) MarkListedAndScheduleDeletion(
	sess domain.Session,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
) (domain.MarkOutcome, error) {
	if err := validateKey(owned, uid); err != nil {
		return 0, err
	}
	tx := sess.Txn()
	msg, ok, err := s.store.LoadMessage(tx, owned, uid)
	if err != nil {
		return 0, fmt.Errorf("load message: %w", err)
	}
	if !ok {
		return domain.MarkMessageNotFound, nil
	}
	if msg.DeletionRequested {
		return domain.MarkAlreadyRequested, nil
	}

	msg.Listed = true
	msg.DeletionRequested = true
	if err := s.store.SaveMessage(tx, msg); err != nil {
		return 0, fmt.Errorf("save message: %w", err)
	}
	sess.Enqueue(domain.MarkListedAndDeleteEvent{OwnedIdentity: owned, UID: uid, Server: msg.Server})
	s.metrics.Ingested("mark", domain.MarkApplied.String())
	return domain.MarkApplied, nil
}

// ConfirmServerDeletion removes a message, its attachments and their bytes
// after the server acknowledged the DELETE. Only messages marked for deletion
// are removed.
func (s *Service) ConfirmServerDeletion(
	sess domain.Session,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
) (domain.DeleteOutcome, error) {
	if err := validateKey(owned, uid); err != nil {
		return 0, err
	}
	tx := sess.Txn()
	msg, ok, err := s.store.LoadMessage(tx, owned, uid)
	if err != nil {
		return 0, fmt.Errorf("load message: %w", err)
	}
	if !ok {
		return domain.DeleteNotFound, nil
	}
	if !msg.DeletionRequested {
		return domain.DeleteNotRequested, nil
	}
	if err := s.store.DeleteMessage(tx, owned, uid); err != nil {
		return 0, fmt.Errorf("delete message: %w", err)
	}
	return domain.Deleted, nil
}

// Message returns one stored message.
func (s *Service) Message(
	tx domain.Txn,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
) (domain.InboxMessage, bool, error) {
	return s.store.LoadMessage(tx, owned, uid)
}

// Messages yields the stored messages of owned in uid order.
func (s *Service) Messages(tx domain.Txn, owned domain.OwnedIdentity) iter.Seq2[domain.InboxMessage, error] {
	return s.store.ListMessages(tx, owned)
}

// Attachments returns the attachments of one message ordered by index.
func (s *Service) Attachments(
	tx domain.Txn,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
) ([]domain.InboxAttachment, error) {
	return s.store.ListAttachments(tx, owned, uid)
}

// PendingDeletions yields messages marked for deletion whose server DELETE
// has not been confirmed yet, e.g. after a crash between commit and DELETE.
func (s *Service) PendingDeletions(tx domain.Txn, owned domain.OwnedIdentity) iter.Seq2[domain.InboxMessage, error] {
	return func(yield func(domain.InboxMessage, error) bool) {
		for msg, err := range s.store.ListMessages(tx, owned) {
			if err != nil {
				yield(domain.InboxMessage{}, err)
				return
			}
			if !msg.DeletionRequested {
				continue
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// AttachmentData returns the bytes of a completed attachment. ok is false
// when the attachment is unknown or still incomplete.
func (s *Service) AttachmentData(
	tx domain.Txn,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
	index int,
) ([]byte, bool, error) {
	att, ok, err := s.store.LoadAttachment(tx, owned, uid, index)
	if err != nil || !ok || !att.Completed {
		return nil, false, err
	}
	data, err := s.store.ReadAttachment(tx, owned, uid, index)
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) < att.ExpectedSize {
		return nil, false, fmt.Errorf("attachment %d of %s: have %d of %d bytes",
			index, uid, len(data), att.ExpectedSize)
	}
	return data[:att.ExpectedSize], true, nil
}

func (s *Service) checkOwned(sess domain.Session, owned domain.OwnedIdentity) error {
	ok, err := sess.Identity().IsOwnedIdentity(sess.Context(), owned)
	if err != nil {
		return fmt.Errorf("identity delegate: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownOwnedIdentity, owned)
	}
	return nil
}

func validateKey(owned domain.OwnedIdentity, uid domain.MessageUID) error {
	if owned == "" {
		return domain.Malformed("owned_identity", "empty")
	}
	if uid == "" {
		return domain.Malformed("uid", "empty")
	}
	return nil
}

func validateIncoming(in domain.IncomingMessage) error {
	if err := validateKey(in.OwnedIdentity, in.UID); err != nil {
		return err
	}
	if len(in.EncryptedPayload) == 0 {
		return domain.Malformed("encrypted_payload", "empty")
	}
	seen := make(map[int]struct{}, len(in.Attachments))
	for _, a := range in.Attachments {
		if a.Index < 0 {
			return domain.Malformed("attachments", "negative index %d", a.Index)
		}
		if a.ExpectedSize < 0 {
			return domain.Malformed("attachments", "negative size for attachment %d", a.Index)
		}
		if _, dup := seen[a.Index]; dup {
			return domain.Malformed("attachments", "duplicate index %d", a.Index)
		}
		seen[a.Index] = struct{}{}
	}
	return nil
}
