package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintBytes is how much of the SHA-256 digest a fingerprint keeps.
const fingerprintBytes = 10

// Fingerprint returns a short hex fingerprint of a public key. The
// fingerprint of an identity's X25519 key is also its owned identity, so the
// encoding must never change.
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:fingerprintBytes])
}
