package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ciphersync/internal/auth"
	"ciphersync/internal/domain"
)

// Signer is the unlocked identity a TokenSource authenticates as.
type Signer interface {
	Owned() domain.OwnedIdentity
	PublicKey() domain.X25519Public
	SigningKey() domain.Ed25519Public
	Sign(msg []byte) []byte
}

// tokenSkew is how long before expiry a cached token is replaced.
const tokenSkew = 30 * time.Second

// TokenSource obtains relay session tokens for one identity and caches them
// until shortly before they expire.
type TokenSource struct {
	client *HTTP
	signer Signer
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSource returns a TokenSource authenticating signer at client.
func NewTokenSource(client *HTTP, signer Signer, logger *zap.Logger) *TokenSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenSource{
		client: client,
		signer: signer,
		logger: logger.With(zap.String("module", "relay")),
		now:    time.Now,
	}
}

// ServerSessionToken returns a valid token for owned.
//
// Steps:
//  1. Return the cached token unless it expires within tokenSkew.
//  2. Request a nonce and sign the challenge message.
//  3. Exchange the signature for a token and cache it.
func (s *TokenSource) ServerSessionToken(ctx context.Context, owned domain.OwnedIdentity) (string, error) {
	if owned != s.signer.Owned() {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownOwnedIdentity, owned)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Add(tokenSkew).Before(s.expires) {
		return s.token, nil
	}

	var ch ChallengeResponse
	if err := s.client.post(ctx, "/v1/session/challenge", "", ChallengeRequest{Owned: owned}, &ch); err != nil {
		return "", fmt.Errorf("session challenge: %w", err)
	}
	xpub, edpub := s.signer.PublicKey(), s.signer.SigningKey()
	req := SessionRequest{
		Owned:     owned,
		XPub:      xpub.Slice(),
		EdPub:     edpub.Slice(),
		Nonce:     ch.Nonce,
		Signature: s.signer.Sign(auth.ChallengeMessage(owned, ch.Nonce)),
	}
	var out SessionResponse
	if err := s.client.post(ctx, "/v1/session", "", req, &out); err != nil {
		return "", fmt.Errorf("session exchange: %w", err)
	}
	s.token, s.expires = out.Token, out.ExpiresAt
	s.logger.Debug("relay session opened",
		zap.String("owned", owned.String()),
		zap.Time("expires_at", out.ExpiresAt),
	)
	return s.token, nil
}

// Invalidate drops the cached token so the next call authenticates again.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.expires = "", time.Time{}
}

// Compile-time assertion that TokenSource implements domain.CreateServerSessionDelegate.
var _ domain.CreateServerSessionDelegate = (*TokenSource)(nil)
