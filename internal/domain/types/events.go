package types

import "time"

// ListenerSlot names the listener an event is delivered to.
type ListenerSlot int

const (
	SlotInboxMessage ListenerSlot = iota
	SlotExtendedPayload
	SlotInboxAttachment
	SlotMarkListedAndDelete
	SlotPushConfiguration
	SlotPendingQuery
	SlotWellKnown
)

var slotNames = [...]string{
	SlotInboxMessage:        "inbox-message",
	SlotExtendedPayload:     "extended-payload",
	SlotInboxAttachment:     "inbox-attachment",
	SlotMarkListedAndDelete: "mark-listed-and-delete",
	SlotPushConfiguration:   "push-configuration",
	SlotPendingQuery:        "pending-query",
	SlotWellKnown:           "well-known",
}

func (s ListenerSlot) String() string {
	if s < 0 || int(s) >= len(slotNames) {
		return "unknown"
	}
	return slotNames[s]
}

// Event is a notification buffered by a session until commit.
type Event interface {
	Slot() ListenerSlot
	// Owner is the owned identity the change belongs to, empty for
	// server-scoped events.
	Owner() OwnedIdentity
}

// InboxMessageEvent reports a newly persisted inbox message.
type InboxMessageEvent struct {
	OwnedIdentity OwnedIdentity
	UID           MessageUID
	ArrivedAt     time.Time
}

func (InboxMessageEvent) Slot() ListenerSlot     { return SlotInboxMessage }
func (e InboxMessageEvent) Owner() OwnedIdentity { return e.OwnedIdentity }

// ExtendedPayloadEvent reports that a message's extended payload arrived.
type ExtendedPayloadEvent struct {
	OwnedIdentity OwnedIdentity
	UID           MessageUID
	Payload       []byte
}

func (ExtendedPayloadEvent) Slot() ListenerSlot     { return SlotExtendedPayload }
func (e ExtendedPayloadEvent) Owner() OwnedIdentity { return e.OwnedIdentity }

// InboxAttachmentEvent reports download progress or completion.
type InboxAttachmentEvent struct {
	OwnedIdentity OwnedIdentity
	UID           MessageUID
	Index         int
	ReceivedBytes int64
	ExpectedSize  int64
	Completed     bool
}

func (InboxAttachmentEvent) Slot() ListenerSlot     { return SlotInboxAttachment }
func (e InboxAttachmentEvent) Owner() OwnedIdentity { return e.OwnedIdentity }

// MarkListedAndDeleteEvent asks downstream logic to delete the message on the
// server now that the listed flag is durable.
type MarkListedAndDeleteEvent struct {
	OwnedIdentity OwnedIdentity
	UID           MessageUID
	Server        ServerURL
}

func (MarkListedAndDeleteEvent) Slot() ListenerSlot     { return SlotMarkListedAndDelete }
func (e MarkListedAndDeleteEvent) Owner() OwnedIdentity { return e.OwnedIdentity }

// PushConfigurationEvent reports a new push registration.
type PushConfigurationEvent struct {
	Configuration PushConfiguration
}

func (PushConfigurationEvent) Slot() ListenerSlot { return SlotPushConfiguration }
func (e PushConfigurationEvent) Owner() OwnedIdentity {
	return e.Configuration.OwnedIdentity
}

// PendingQueryEvent reports a resolved or failed query.
type PendingQueryEvent struct {
	CorrelationID CorrelationID
	OwnedIdentity OwnedIdentity
	Kind          QueryKind
	State         QueryState
	Response      []byte
	Failure       *FailureReason
}

func (PendingQueryEvent) Slot() ListenerSlot     { return SlotPendingQuery }
func (e PendingQueryEvent) Owner() OwnedIdentity { return e.OwnedIdentity }

// WellKnownEvent reports a refreshed cache entry.
type WellKnownEvent struct {
	Entry WellKnownEntry
}

func (WellKnownEvent) Slot() ListenerSlot   { return SlotWellKnown }
func (WellKnownEvent) Owner() OwnedIdentity { return "" }
