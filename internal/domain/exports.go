package domain

import (
	interfaces "ciphersync/internal/domain/interfaces"
	types "ciphersync/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	OwnedIdentity            = types.OwnedIdentity
	Fingerprint              = types.Fingerprint
	MessageUID               = types.MessageUID
	ServerURL                = types.ServerURL
	CorrelationID            = types.CorrelationID
	Identity                 = types.Identity
	X25519Public             = types.X25519Public
	X25519Private            = types.X25519Private
	Ed25519Public            = types.Ed25519Public
	Ed25519Private           = types.Ed25519Private
	InboxMessage             = types.InboxMessage
	InboxAttachment          = types.InboxAttachment
	IncomingMessage          = types.IncomingMessage
	AttachmentDescriptor     = types.AttachmentDescriptor
	ByteRange                = types.ByteRange
	QueryKind                = types.QueryKind
	QueryState               = types.QueryState
	FailureReason            = types.FailureReason
	NewQuery                 = types.NewQuery
	PendingServerQuery       = types.PendingServerQuery
	WellKnownEntry           = types.WellKnownEntry
	OSMStyle                 = types.OSMStyle
	PushConfiguration        = types.PushConfiguration
	ListenerSlot             = types.ListenerSlot
	Event                    = types.Event
	InboxMessageEvent        = types.InboxMessageEvent
	ExtendedPayloadEvent     = types.ExtendedPayloadEvent
	InboxAttachmentEvent     = types.InboxAttachmentEvent
	MarkListedAndDeleteEvent = types.MarkListedAndDeleteEvent
	PushConfigurationEvent   = types.PushConfigurationEvent
	PendingQueryEvent        = types.PendingQueryEvent
	WellKnownEvent           = types.WellKnownEvent
	IngestOutcome            = types.IngestOutcome
	ExtendedPayloadOutcome   = types.ExtendedPayloadOutcome
	ChunkOutcome             = types.ChunkOutcome
	MarkOutcome              = types.MarkOutcome
	DeleteOutcome            = types.DeleteOutcome
	AttemptOutcome           = types.AttemptOutcome
	ResolveOutcome           = types.ResolveOutcome
	FailOutcome              = types.FailOutcome
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	Txn                         = interfaces.Txn
	TxnStore                    = interfaces.TxnStore
	IdentityStore               = interfaces.IdentityStore
	InboxStore                  = interfaces.InboxStore
	QueryStore                  = interfaces.QueryStore
	WellKnownStore              = interfaces.WellKnownStore
	PushStore                   = interfaces.PushStore
	IdentityService             = interfaces.IdentityService
	IdentityDelegate            = interfaces.IdentityDelegate
	NotificationPostingDelegate = interfaces.NotificationPostingDelegate
	CreateServerSessionDelegate = interfaces.CreateServerSessionDelegate
	Delegates                   = interfaces.Delegates
	Session                     = interfaces.Session
	Listeners                   = interfaces.Listeners
	InboxMessageListener        = interfaces.InboxMessageListener
	ExtendedPayloadListener     = interfaces.ExtendedPayloadListener
	InboxAttachmentListener     = interfaces.InboxAttachmentListener
	MarkListedAndDeleteListener = interfaces.MarkListedAndDeleteListener
	PushConfigurationListener   = interfaces.PushConfigurationListener
	PendingQueryListener        = interfaces.PendingQueryListener
	WellKnownListener           = interfaces.WellKnownListener
	ServerMessage               = interfaces.ServerMessage
	InboxTransport              = interfaces.InboxTransport
	QueryTransport              = interfaces.QueryTransport
	PushTransport               = interfaces.PushTransport
	WellKnownFetcher            = interfaces.WellKnownFetcher

	InboxMessageListenerFunc        = interfaces.InboxMessageListenerFunc
	ExtendedPayloadListenerFunc     = interfaces.ExtendedPayloadListenerFunc
	InboxAttachmentListenerFunc     = interfaces.InboxAttachmentListenerFunc
	MarkListedAndDeleteListenerFunc = interfaces.MarkListedAndDeleteListenerFunc
	PushConfigurationListenerFunc   = interfaces.PushConfigurationListenerFunc
	PendingQueryListenerFunc        = interfaces.PendingQueryListenerFunc
	WellKnownListenerFunc           = interfaces.WellKnownListenerFunc
)

// Re-exported enum values.
const (
	QueryDeviceManagement     = types.QueryDeviceManagement
	QueryGroup                = types.QueryGroup
	QueryOwnedDeviceDiscovery = types.QueryOwnedDeviceDiscovery
	QueryOther                = types.QueryOther

	QueryCreated  = types.QueryCreated
	QuerySent     = types.QuerySent
	QueryResolved = types.QueryResolved
	QueryFailed   = types.QueryFailed

	IngestCreated        = types.IngestCreated
	IngestAlreadyPresent = types.IngestAlreadyPresent

	ExtendedPayloadApplied         = types.ExtendedPayloadApplied
	ExtendedPayloadMessageNotFound = types.ExtendedPayloadMessageNotFound

	ChunkPartial            = types.ChunkPartial
	ChunkCompleted          = types.ChunkCompleted
	ChunkAttachmentNotFound = types.ChunkAttachmentNotFound
	ChunkAlreadyComplete    = types.ChunkAlreadyComplete

	MarkApplied          = types.MarkApplied
	MarkAlreadyRequested = types.MarkAlreadyRequested
	MarkMessageNotFound  = types.MarkMessageNotFound

	Deleted            = types.Deleted
	DeleteNotFound     = types.DeleteNotFound
	DeleteNotRequested = types.DeleteNotRequested

	AttemptRecorded        = types.AttemptRecorded
	AttemptAlreadyResolved = types.AttemptAlreadyResolved
	AttemptNotRetryable    = types.AttemptNotRetryable
	AttemptNotFound        = types.AttemptNotFound

	Resolved        = types.Resolved
	AlreadyResolved = types.AlreadyResolved
	ResolveNotFound = types.ResolveNotFound

	FailRecorded        = types.FailRecorded
	FailAlreadyResolved = types.FailAlreadyResolved
	FailNotFound        = types.FailNotFound

	SlotInboxMessage        = types.SlotInboxMessage
	SlotExtendedPayload     = types.SlotExtendedPayload
	SlotInboxAttachment     = types.SlotInboxAttachment
	SlotMarkListedAndDelete = types.SlotMarkListedAndDelete
	SlotPushConfiguration   = types.SlotPushConfiguration
	SlotPendingQuery        = types.SlotPendingQuery
	SlotWellKnown           = types.SlotWellKnown
)
