package types

import "time"

// InboxMessage is one message retrieved from the server for an owned identity.
//
// The encrypted payload and arrival time never change once persisted; only
// the listed, extended payload and deletion flags move.
type InboxMessage struct {
	OwnedIdentity            OwnedIdentity `json:"owned_identity"`
	UID                      MessageUID    `json:"uid"`
	Server                   ServerURL     `json:"server,omitempty"`
	EncryptedPayload         []byte        `json:"encrypted_payload"`
	ArrivedAt                time.Time     `json:"arrived_at"`
	Listed                   bool          `json:"listed"`
	ExtendedPayloadAvailable bool          `json:"extended_payload_available"`
	ExtendedPayload          []byte        `json:"extended_payload,omitempty"`
	DeletionRequested        bool          `json:"deletion_requested"`
	AttachmentCount          int           `json:"attachment_count"`
}

// AttachmentDescriptor announces an attachment together with its message.
type AttachmentDescriptor struct {
	Index        int   `json:"index"`
	ExpectedSize int64 `json:"expected_size"`
}

// IncomingMessage is what the transport hands to Inbox Intake.
type IncomingMessage struct {
	OwnedIdentity    OwnedIdentity
	UID              MessageUID
	Server           ServerURL
	EncryptedPayload []byte
	ArrivedAt        time.Time
	Attachments      []AttachmentDescriptor
}

// ByteRange is a half-open interval [Offset, Offset+Length).
type ByteRange struct {
	Offset int64 `json:"offset"`
	Length int64 `json:"length"`
}

// End returns the exclusive end of the range.
func (r ByteRange) End() int64 { return r.Offset + r.Length }

// InboxAttachment is one attachment owned by exactly one InboxMessage.
type InboxAttachment struct {
	OwnedIdentity  OwnedIdentity `json:"owned_identity"`
	UID            MessageUID    `json:"uid"`
	Index          int           `json:"index"`
	ExpectedSize   int64         `json:"expected_size"`
	ReceivedRanges []ByteRange   `json:"received_ranges"`
	Completed      bool          `json:"completed"`
}

// ReceivedBytes is the number of distinct bytes covered by ReceivedRanges.
// Ranges are kept merged, so this is a plain sum.
func (a InboxAttachment) ReceivedBytes() int64 {
	var n int64
	for _, r := range a.ReceivedRanges {
		n += r.Length
	}
	return n
}

// MissingRanges returns the gaps in [0, ExpectedSize) not yet received.
func (a InboxAttachment) MissingRanges() []ByteRange {
	var out []ByteRange
	var cursor int64
	for _, r := range a.ReceivedRanges {
		if r.Offset > cursor {
			out = append(out, ByteRange{Offset: cursor, Length: r.Offset - cursor})
		}
		if r.End() > cursor {
			cursor = r.End()
		}
	}
	if cursor < a.ExpectedSize {
		out = append(out, ByteRange{Offset: cursor, Length: a.ExpectedSize - cursor})
	}
	return out
}
