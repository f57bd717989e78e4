package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphersync/internal/crypto"
	"ciphersync/internal/services/identity"
	"ciphersync/internal/store"
)

const pass = "Correct-Horse-9"

func TestGenerateIdentity_RejectsWeakPassphrase(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))
	_, _, err := svc.GenerateIdentity("short", "http://relay")
	assert.ErrorIs(t, err, identity.ErrWeakPassphrase)
}

func TestGenerateAndUnlock(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))

	id, owned, err := svc.GenerateIdentity(pass, "http://relay")
	require.NoError(t, err)
	assert.Equal(t, identity.OwnedIdentityOf(id), owned)

	fp, err := svc.FingerprintIdentity(pass)
	require.NoError(t, err)
	assert.Equal(t, owned.String(), fp.String())

	u, err := svc.Unlock(pass)
	require.NoError(t, err)
	assert.Equal(t, owned, u.Owned())
	assert.Equal(t, "http://relay", u.Server().String())

	ok, err := u.IsOwnedIdentity(context.Background(), owned)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = u.IsOwnedIdentity(context.Background(), "someone-else")
	assert.False(t, ok)

	sig := u.Sign([]byte("nonce"))
	assert.True(t, crypto.VerifyEd25519(u.SigningKey(), []byte("nonce"), sig))
}

func TestUnlock_WrongPassphrase(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))
	_, _, err := svc.GenerateIdentity(pass, "")
	require.NoError(t, err)

	_, err = svc.Unlock("Wrong-Horse-99")
	assert.ErrorIs(t, err, store.ErrWrongPassphrase)
}
