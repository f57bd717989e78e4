package relay

import (
	"time"

	"ciphersync/internal/domain"
)

// WellKnownPath is where a relay publishes its configuration.
const WellKnownPath = "/.well-known/ciphersync.json"

// WellKnownDocument is the JSON body served at WellKnownPath.
type WellKnownDocument struct {
	WSURL      string            `json:"ws_url"`
	TURNURLs   []string          `json:"turn_urls"`
	OSMStyles  []domain.OSMStyle `json:"osm_styles"`
	AddressURL string            `json:"address_url"`
	TTLSeconds int64             `json:"ttl_seconds,omitempty"`
}

// ChallengeRequest asks for a session nonce.
type ChallengeRequest struct {
	Owned domain.OwnedIdentity `json:"owned"`
}

// ChallengeResponse carries the nonce to sign.
type ChallengeResponse struct {
	Nonce []byte `json:"nonce"`
}

// SessionRequest proves possession of the identity's signing key.
type SessionRequest struct {
	Owned     domain.OwnedIdentity `json:"owned"`
	XPub      []byte               `json:"xpub"`
	EdPub     []byte               `json:"edpub"`
	Nonce     []byte               `json:"nonce"`
	Signature []byte               `json:"signature"`
}

// SessionResponse carries the bearer token for later calls.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// QueryRequest is a transmitted pending query.
type QueryRequest struct {
	CorrelationID domain.CorrelationID `json:"correlation_id"`
	Owned         domain.OwnedIdentity `json:"owned,omitempty"`
	Kind          domain.QueryKind     `json:"kind"`
	Request       []byte               `json:"request"`
}

// QueryResponse is the relay's answer to a QueryRequest.
type QueryResponse struct {
	Response []byte `json:"response"`
}

// DeliverRequest enqueues a message on a development relay.
type DeliverRequest struct {
	Owned            domain.OwnedIdentity `json:"owned"`
	EncryptedPayload []byte               `json:"encrypted_payload"`
	ExtendedPayload  []byte               `json:"extended_payload,omitempty"`
	Attachments      [][]byte             `json:"attachments,omitempty"`
}

// DeliverResponse names the queued message.
type DeliverResponse struct {
	UID domain.MessageUID `json:"uid"`
}

// Notice is pushed over the websocket when the relay state of an owned
// identity changes.
type Notice struct {
	Type  string               `json:"type"`
	Owned domain.OwnedIdentity `json:"owned,omitempty"`
	UID   domain.MessageUID    `json:"uid,omitempty"`
}

// Notice types.
const (
	NoticeMessage = "message"
	NoticePing    = "ping"
	NoticePong    = "pong"
)

// Entry converts the document into a cache entry for server.
func (d WellKnownDocument) Entry(server domain.ServerURL) domain.WellKnownEntry {
	return domain.WellKnownEntry{
		Server:     server,
		WSURL:      d.WSURL,
		TURNURLs:   d.TURNURLs,
		OSMStyles:  d.OSMStyles,
		AddressURL: d.AddressURL,
		TTL:        time.Duration(d.TTLSeconds) * time.Second,
	}
}
