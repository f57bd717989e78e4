package session

import (
	"go.uber.org/zap"

	"ciphersync/internal/domain"
)

// deliver hands e to the listener registered for its slot, if any.
func (s *Session) deliver(e domain.Event) {
	l := s.listeners
	var call func()

	switch ev := e.(type) {
	case domain.InboxMessageEvent:
		if l.InboxMessage != nil {
			call = func() { l.InboxMessage.InboxMessageCreated(ev) }
		}
	case domain.ExtendedPayloadEvent:
		if l.ExtendedPayload != nil {
			call = func() { l.ExtendedPayload.ExtendedPayloadReceived(ev) }
		}
	case domain.InboxAttachmentEvent:
		if l.InboxAttachment != nil {
			call = func() { l.InboxAttachment.InboxAttachmentUpdated(ev) }
		}
	case domain.MarkListedAndDeleteEvent:
		if l.MarkListedAndDelete != nil {
			call = func() { l.MarkListedAndDelete.MessageMarkedListedAndDelete(ev) }
		}
	case domain.PushConfigurationEvent:
		if l.PushConfiguration != nil {
			call = func() { l.PushConfiguration.PushConfigurationRegistered(ev) }
		}
	case domain.PendingQueryEvent:
		if l.PendingQuery != nil {
			call = func() { l.PendingQuery.PendingQueryCompleted(ev) }
		}
	case domain.WellKnownEvent:
		if l.WellKnown != nil {
			call = func() { l.WellKnown.WellKnownRefreshed(ev) }
		}
	default:
		s.logger.Warn("event of unknown type dropped", zap.Stringer("slot", e.Slot()))
		return
	}
	if call == nil {
		return
	}

	slot := e.Slot().String()
	if s.guard(slot, call) {
		s.metrics.EventDelivered(slot)
	}
}

// guard runs fn, recovering a panic. It reports whether fn returned normally.
func (s *Session) guard(slot string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.metrics.ListenerPanicked(slot)
			s.logger.Error("listener panicked",
				zap.String("slot", slot),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	fn()
	return true
}
