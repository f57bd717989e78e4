package identity

import (
	"context"
	"fmt"
	"unicode"

	"ciphersync/internal/crypto"
	"ciphersync/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
)

// Service manages identity key creation and access using a backing store.
//
// The identity contains:
//   - X25519 key pair whose fingerprint names the owned identity.
//   - Ed25519 key pair for signing relay session challenges.
type Service struct {
	store domain.IdentityStore
}

// New returns an identity service backed by the given store.
func New(s domain.IdentityStore) *Service { return &Service{store: s} }

// GenerateIdentity creates a new identity homed on server, saves it encrypted
// with the passphrase, and returns the identity plus its owned identity.
func (s *Service) GenerateIdentity(
	passphrase string,
	server domain.ServerURL,
) (domain.Identity, domain.OwnedIdentity, error) {
	if !isSecurePassphrase(passphrase) {
		return domain.Identity{}, "", ErrWeakPassphrase
	}

	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Identity{}, "", err
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.Identity{}, "", err
	}

	id := domain.Identity{
		XPub:   xPub,
		XPriv:  xPriv,
		EdPub:  edPub,
		EdPriv: edPriv,
		Server: server,
	}
	if err := s.store.SaveIdentity(passphrase, id); err != nil {
		return domain.Identity{}, "", err
	}
	return id, OwnedIdentityOf(id), nil
}

// LoadIdentity decrypts and returns the local identity.
func (s *Service) LoadIdentity(passphrase string) (domain.Identity, error) {
	return s.store.LoadIdentity(passphrase)
}

// FingerprintIdentity returns a short fingerprint of the local X25519 public key.
func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return domain.Fingerprint(crypto.Fingerprint(id.XPub.Slice())), nil
}

// Unlock decrypts the local identity and returns it ready for use as the
// identity delegate of fetch sessions.
func (s *Service) Unlock(passphrase string) (*Unlocked, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	return &Unlocked{id: id, owned: OwnedIdentityOf(id)}, nil
}

// OwnedIdentityOf returns the owned identity naming id.
func OwnedIdentityOf(id domain.Identity) domain.OwnedIdentity {
	return domain.OwnedIdentity(crypto.Fingerprint(id.XPub.Slice()))
}

// Unlocked is a decrypted identity.
type Unlocked struct {
	id    domain.Identity
	owned domain.OwnedIdentity
}

// NewUnlocked wraps an already decrypted identity.
func NewUnlocked(id domain.Identity) *Unlocked {
	return &Unlocked{id: id, owned: OwnedIdentityOf(id)}
}

// Owned returns the owned identity.
func (u *Unlocked) Owned() domain.OwnedIdentity { return u.owned }

// Server returns the relay the identity is homed on.
func (u *Unlocked) Server() domain.ServerURL { return u.id.Server }

// PublicKey returns the X25519 public key the owned identity is derived from.
func (u *Unlocked) PublicKey() domain.X25519Public { return u.id.XPub }

// SigningKey returns the Ed25519 public key the relay authenticates.
func (u *Unlocked) SigningKey() domain.Ed25519Public { return u.id.EdPub }

// Sign signs msg with the identity's Ed25519 key.
func (u *Unlocked) Sign(msg []byte) []byte { return crypto.SignEd25519(u.id.EdPriv, msg) }

// IsOwnedIdentity reports whether owned names this identity.
func (u *Unlocked) IsOwnedIdentity(_ context.Context, owned domain.OwnedIdentity) (bool, error) {
	return owned != "" && owned == u.owned, nil
}

// Lock wipes the private keys held in memory.
func (u *Unlocked) Lock() {
	crypto.Wipe(u.id.XPriv[:])
	crypto.Wipe(u.id.EdPriv[:])
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertions.
var (
	_ domain.IdentityService  = (*Service)(nil)
	_ domain.IdentityDelegate = (*Unlocked)(nil)
)
