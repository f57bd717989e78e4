package auth

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"ciphersync/internal/crypto"
	"ciphersync/internal/domain"
)

var (
	ErrUnknownChallenge = errors.New("unknown or expired challenge")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrKeyMismatch      = errors.New("signing key does not match the registered identity")
	ErrOwnedMismatch    = errors.New("owned identity does not match the identity key")
)

// ChallengeMessage is the byte string an identity signs to open a session.
func ChallengeMessage(owned domain.OwnedIdentity, nonce []byte) []byte {
	msg := make([]byte, 0, len("ciphersync-session\x00")+len(owned)+1+len(nonce))
	msg = append(msg, "ciphersync-session\x00"...)
	msg = append(msg, owned.String()...)
	msg = append(msg, 0)
	return append(msg, nonce...)
}

// Challenges hands out single-use nonces and remembers the signing key first
// presented by each owned identity.
type Challenges struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]pendingChallenge
	keys    map[domain.OwnedIdentity]domain.Ed25519Public
	now     func() time.Time
}

type pendingChallenge struct {
	owned   domain.OwnedIdentity
	expires time.Time
}

// NewChallenges returns a registry whose nonces expire after ttl.
func NewChallenges(ttl time.Duration) *Challenges {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Challenges{
		ttl:     ttl,
		pending: make(map[string]pendingChallenge),
		keys:    make(map[domain.OwnedIdentity]domain.Ed25519Public),
		now:     time.Now,
	}
}

// Issue returns a fresh nonce for owned.
func (c *Challenges) Issue(owned domain.OwnedIdentity) ([]byte, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, p := range c.pending {
		if now.After(p.expires) {
			delete(c.pending, k)
		}
	}
	c.pending[string(nonce)] = pendingChallenge{owned: owned, expires: now.Add(c.ttl)}
	return nonce, nil
}

// Verify consumes nonce and checks sig. The first key that verifies for an
// owned identity is pinned; later sessions must use the same key. xpub must
// fingerprint to owned.
func (c *Challenges) Verify(
	owned domain.OwnedIdentity,
	xpub domain.X25519Public,
	edpub domain.Ed25519Public,
	nonce, sig []byte,
) error {
	if domain.OwnedIdentity(crypto.Fingerprint(xpub.Slice())) != owned {
		return ErrOwnedMismatch
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[string(nonce)]
	delete(c.pending, string(nonce))
	if !ok || p.owned != owned || c.now().After(p.expires) {
		return ErrUnknownChallenge
	}
	if pinned, ok := c.keys[owned]; ok && pinned != edpub {
		return ErrKeyMismatch
	}
	if !crypto.VerifyEd25519(edpub, ChallengeMessage(owned, nonce), sig) {
		return ErrInvalidSignature
	}
	c.keys[owned] = edpub
	return nil
}
