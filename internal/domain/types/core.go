package types

// OwnedIdentity identifies a local identity managed by the engine. It is the
// hex fingerprint of the identity's X25519 public key and scopes inbox and
// push configuration state.
type OwnedIdentity string

// String returns the string form of the owned identity.
func (o OwnedIdentity) String() string { return string(o) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// MessageUID is the server-assigned identifier of an inbox message. It is
// unique per owned identity.
type MessageUID string

// String returns the string form of the message identifier.
func (id MessageUID) String() string { return string(id) }

// ServerURL is the base URL of a relay server, e.g. https://relay.example.org.
type ServerURL string

// String returns the string form of the server URL.
func (s ServerURL) String() string { return string(s) }

// CorrelationID ties a pending server query to the response that resolves it.
type CorrelationID string

// String returns the string form of the correlation identifier.
func (id CorrelationID) String() string { return string(id) }
