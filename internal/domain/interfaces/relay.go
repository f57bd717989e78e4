package interfaces

import (
	"context"

	domaintypes "ciphersync/internal/domain/types"
)

// ServerMessage is one queued message as listed by the relay.
type ServerMessage struct {
	UID                domaintypes.MessageUID             `json:"uid"`
	EncryptedPayload   []byte                             `json:"encrypted_payload"`
	ArrivedAt          int64                              `json:"arrived_at"`
	HasExtendedPayload bool                               `json:"has_extended_payload"`
	Attachments        []domaintypes.AttachmentDescriptor `json:"attachments,omitempty"`
}

// InboxTransport is how the engine pulls inbox state from the relay. Every
// call carries the server session token for owned.
type InboxTransport interface {
	FetchMessages(
		ctx context.Context,
		token string,
		owned domaintypes.OwnedIdentity,
		limit int,
	) ([]ServerMessage, error)
	FetchExtendedPayload(
		ctx context.Context,
		token string,
		owned domaintypes.OwnedIdentity,
		uid domaintypes.MessageUID,
	) ([]byte, error)
	FetchAttachmentRange(
		ctx context.Context,
		token string,
		owned domaintypes.OwnedIdentity,
		uid domaintypes.MessageUID,
		index int,
		rng domaintypes.ByteRange,
	) ([]byte, error)
	DeleteMessage(
		ctx context.Context,
		token string,
		owned domaintypes.OwnedIdentity,
		uid domaintypes.MessageUID,
	) error
}

// QueryTransport transmits a pending query and returns the server response.
type QueryTransport interface {
	SendQuery(ctx context.Context, token string, q domaintypes.PendingServerQuery) ([]byte, error)
}

// PushTransport registers push configurations with the relay.
type PushTransport interface {
	RegisterPush(ctx context.Context, token string, cfg domaintypes.PushConfiguration) error
}

// WellKnownFetcher downloads the well-known configuration of a server.
type WellKnownFetcher interface {
	FetchWellKnown(ctx context.Context, server domaintypes.ServerURL) (domaintypes.WellKnownEntry, error)
}
