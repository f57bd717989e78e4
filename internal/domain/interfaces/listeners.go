package interfaces

import domaintypes "ciphersync/internal/domain/types"

// InboxMessageListener observes newly persisted inbox messages.
type InboxMessageListener interface {
	InboxMessageCreated(event domaintypes.InboxMessageEvent)
}

// ExtendedPayloadListener observes extended payload arrivals.
type ExtendedPayloadListener interface {
	ExtendedPayloadReceived(event domaintypes.ExtendedPayloadEvent)
}

// InboxAttachmentListener observes attachment progress and completion.
type InboxAttachmentListener interface {
	InboxAttachmentUpdated(event domaintypes.InboxAttachmentEvent)
}

// MarkListedAndDeleteListener is told when a message may be deleted on the
// server.
type MarkListedAndDeleteListener interface {
	MessageMarkedListedAndDelete(event domaintypes.MarkListedAndDeleteEvent)
}

// PushConfigurationListener observes new push registrations.
type PushConfigurationListener interface {
	PushConfigurationRegistered(event domaintypes.PushConfigurationEvent)
}

// PendingQueryListener observes queries reaching a resolved or failed state.
type PendingQueryListener interface {
	PendingQueryCompleted(event domaintypes.PendingQueryEvent)
}

// WellKnownListener observes refreshed well-known entries.
type WellKnownListener interface {
	WellKnownRefreshed(event domaintypes.WellKnownEvent)
}

// Listeners is the fixed set of listener slots bound to a session. Any slot
// may be nil.
type Listeners struct {
	InboxMessage        InboxMessageListener
	ExtendedPayload     ExtendedPayloadListener
	InboxAttachment     InboxAttachmentListener
	MarkListedAndDelete MarkListedAndDeleteListener
	PushConfiguration   PushConfigurationListener
	PendingQuery        PendingQueryListener
	WellKnown           WellKnownListener
}

// Function adapters, in the spirit of http.HandlerFunc.
type (
	InboxMessageListenerFunc        func(domaintypes.InboxMessageEvent)
	ExtendedPayloadListenerFunc     func(domaintypes.ExtendedPayloadEvent)
	InboxAttachmentListenerFunc     func(domaintypes.InboxAttachmentEvent)
	MarkListedAndDeleteListenerFunc func(domaintypes.MarkListedAndDeleteEvent)
	PushConfigurationListenerFunc   func(domaintypes.PushConfigurationEvent)
	PendingQueryListenerFunc        func(domaintypes.PendingQueryEvent)
	WellKnownListenerFunc           func(domaintypes.WellKnownEvent)
)

func (f InboxMessageListenerFunc) InboxMessageCreated(e domaintypes.InboxMessageEvent) { f(e) }

func (f ExtendedPayloadListenerFunc) ExtendedPayloadReceived(e domaintypes.ExtendedPayloadEvent) {
	f(e)
}

func (f InboxAttachmentListenerFunc) InboxAttachmentUpdated(e domaintypes.InboxAttachmentEvent) {
	f(e)
}

func (f MarkListedAndDeleteListenerFunc) MessageMarkedListedAndDelete(
	e domaintypes.MarkListedAndDeleteEvent,
) {
	f(e)
}

func (f PushConfigurationListenerFunc) PushConfigurationRegistered(
	e domaintypes.PushConfigurationEvent,
) {
	f(e)
}

func (f PendingQueryListenerFunc) PendingQueryCompleted(e domaintypes.PendingQueryEvent) { f(e) }

func (f WellKnownListenerFunc) WellKnownRefreshed(e domaintypes.WellKnownEvent) { f(e) }
