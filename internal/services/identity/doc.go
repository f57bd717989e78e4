// Package identity manages creation, encryption and loading of the local
// identity.
//
// It enforces passphrase policy, generates X25519 and Ed25519 key pairs, and
// persists them via the domain.IdentityStore. An unlocked identity answers
// the session's IdentityDelegate: the only owned identity is the fingerprint
// of its X25519 public key.
package identity
