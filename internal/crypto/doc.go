// Package crypto exposes the minimal primitives used by ciphersync.
//
// Contents
//
//   - X25519 key generation with RFC 7748 clamping (GenerateX25519)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519), used to authenticate to a relay
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display and owned identities
//     (Fingerprint)
//
// # Notes
//
// Key functions return fixed-size array types defined in internal/domain.
// Callers should treat returned secrets as sensitive and rely on Wipe when
// practical to reduce their lifetime in memory.
package crypto
