package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphersync/internal/auth"
	"ciphersync/internal/crypto"
	"ciphersync/internal/domain"
)

func TestCreateAndVerifyToken(t *testing.T) {
	cfg := auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, exp, err := auth.CreateToken("owned-1", cfg)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := auth.VerifyToken(tok, cfg)
	require.NoError(t, err)
	assert.Equal(t, "owned-1", claims.Owned)
}

func TestVerifyToken_WrongSecretOrIssuer(t *testing.T) {
	cfg := auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, _, err := auth.CreateToken("owned-1", cfg)
	require.NoError(t, err)

	_, err = auth.VerifyToken(tok, auth.TokenConfig{Secret: "wrong", Expiry: time.Hour, Issuer: "test"})
	assert.Error(t, err)
	_, err = auth.VerifyToken(tok, auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "other"})
	assert.Error(t, err)
}

func TestCreateToken_InvalidExpiry(t *testing.T) {
	_, _, err := auth.CreateToken("owned-1", auth.TokenConfig{Secret: "s", Expiry: -time.Second})
	assert.Error(t, err)
}

type keys struct {
	owned  domain.OwnedIdentity
	xpub   domain.X25519Public
	edpub  domain.Ed25519Public
	edpriv domain.Ed25519Private
}

func newKeys(t *testing.T) keys {
	t.Helper()
	_, xpub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	edpriv, edpub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	return keys{
		owned:  domain.OwnedIdentity(crypto.Fingerprint(xpub.Slice())),
		xpub:   xpub,
		edpub:  edpub,
		edpriv: edpriv,
	}
}

func TestChallenges_VerifyOnceAndPinKey(t *testing.T) {
	c := auth.NewChallenges(time.Minute)
	k := newKeys(t)

	nonce, err := c.Issue(k.owned)
	require.NoError(t, err)
	sig := crypto.SignEd25519(k.edpriv, auth.ChallengeMessage(k.owned, nonce))
	require.NoError(t, c.Verify(k.owned, k.xpub, k.edpub, nonce, sig))
	assert.ErrorIs(t, c.Verify(k.owned, k.xpub, k.edpub, nonce, sig), auth.ErrUnknownChallenge)

	other := newKeys(t)
	nonce, err = c.Issue(k.owned)
	require.NoError(t, err)
	sig = crypto.SignEd25519(other.edpriv, auth.ChallengeMessage(k.owned, nonce))
	assert.ErrorIs(t, c.Verify(k.owned, k.xpub, other.edpub, nonce, sig), auth.ErrKeyMismatch)
}

func TestChallenges_RejectsBadSignatureAndOwnedMismatch(t *testing.T) {
	c := auth.NewChallenges(time.Minute)
	k := newKeys(t)

	nonce, err := c.Issue(k.owned)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Verify(k.owned, k.xpub, k.edpub, nonce, []byte("nope")), auth.ErrInvalidSignature)
	assert.ErrorIs(t, c.Verify("someone", k.xpub, k.edpub, nonce, nil), auth.ErrOwnedMismatch)
}
