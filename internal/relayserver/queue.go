package relayserver

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"ciphersync/internal/domain"
	"ciphersync/internal/relay"
)

type queued struct {
	msg         domain.ServerMessage
	extended    []byte
	attachments [][]byte
}

// queue holds the undelivered messages of every owned identity in arrival
// order.
type queue struct {
	mu   sync.RWMutex
	msgs map[domain.OwnedIdentity][]*queued
	now  func() time.Time
}

func newQueue() *queue {
	return &queue{msgs: make(map[domain.OwnedIdentity][]*queued), now: time.Now}
}

func (q *queue) deliver(req relay.DeliverRequest) domain.ServerMessage {
	m := &queued{
		msg: domain.ServerMessage{
			UID:                domain.MessageUID(uuid.NewString()),
			EncryptedPayload:   req.EncryptedPayload,
			ArrivedAt:          q.now().UnixMilli(),
			HasExtendedPayload: len(req.ExtendedPayload) > 0,
		},
		extended:    req.ExtendedPayload,
		attachments: req.Attachments,
	}
	for i, a := range req.Attachments {
		m.msg.Attachments = append(m.msg.Attachments, domain.AttachmentDescriptor{
			Index:        i,
			ExpectedSize: int64(len(a)),
		})
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs[req.Owned] = append(q.msgs[req.Owned], m)
	return m.msg
}

func (q *queue) list(owned domain.OwnedIdentity, limit int) []domain.ServerMessage {
	q.mu.RLock()
	defer q.mu.RUnlock()
	all := q.msgs[owned]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]domain.ServerMessage, 0, len(all))
	for _, m := range all {
		out = append(out, m.msg)
	}
	return out
}

func (q *queue) get(owned domain.OwnedIdentity, uid domain.MessageUID) (*queued, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, m := range q.msgs[owned] {
		if m.msg.UID == uid {
			return m, true
		}
	}
	return nil, false
}

func (q *queue) remove(owned domain.OwnedIdentity, uid domain.MessageUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	all := q.msgs[owned]
	for i, m := range all {
		if m.msg.UID == uid {
			q.msgs[owned] = append(all[:i:i], all[i+1:]...)
			if len(q.msgs[owned]) == 0 {
				delete(q.msgs, owned)
			}
			return true
		}
	}
	return false
}
