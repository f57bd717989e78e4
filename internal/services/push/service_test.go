package push_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphersync/internal/domain"
	"ciphersync/internal/services/push"
	"ciphersync/internal/services/session"
	"ciphersync/internal/services/session/sessiontest"
	"ciphersync/internal/store"
)

type fakePushTransport struct {
	calls int
	err   error
}

func (f *fakePushTransport) RegisterPush(context.Context, string, domain.PushConfiguration) error {
	f.calls++
	return f.err
}

func TestService_RegisterAndAcknowledge(t *testing.T) {
	mgr := sessiontest.NewManager(t)
	svc := push.New(store.NewPushKVStore(), nil)
	rec := &sessiontest.Recorder{}
	ctx := context.Background()

	cfg := domain.PushConfiguration{
		OwnedIdentity: "alice",
		Token:         "tok-1",
		DeviceName:    "laptop",
		Parameters:    map[string]string{"kc": "x"},
	}
	require.NoError(t, mgr.Run(ctx, sessiontest.Delegates("alice"), rec.Listeners(), func(s *session.Session) error {
		stored, changed, err := svc.Register(s, cfg)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.False(t, stored.RegisteredAt.IsZero())

		_, changed, err = svc.Register(s, cfg)
		require.NoError(t, err)
		assert.False(t, changed, "identical registration is a no-op")

		acked, err := svc.MarkAcknowledged(s, "alice", "stale-token")
		require.NoError(t, err)
		assert.False(t, acked)
		acked, err = svc.MarkAcknowledged(s, "alice", "tok-1")
		require.NoError(t, err)
		assert.True(t, acked)
		return nil
	}))
	require.Len(t, rec.Events(), 1)

	require.NoError(t, mgr.View(ctx, func(tx domain.Txn) error {
		got, ok, err := svc.Get(tx, "alice")
		require.True(t, ok)
		assert.True(t, got.ServerAcked)
		assert.Equal(t, "laptop", got.DeviceName)
		return err
	}))
}

func TestService_RegisterRejectsUnknownIdentityAndEmptyToken(t *testing.T) {
	mgr := sessiontest.NewManager(t)
	svc := push.New(store.NewPushKVStore(), nil)

	sess, err := mgr.Open(context.Background(), sessiontest.Delegates("alice"), domain.Listeners{})
	require.NoError(t, err)
	defer sess.Discard()

	_, _, err = svc.Register(sess, domain.PushConfiguration{OwnedIdentity: "bob", Token: "t"})
	assert.ErrorIs(t, err, domain.ErrUnknownOwnedIdentity)
	_, _, err = svc.Register(sess, domain.PushConfiguration{OwnedIdentity: "alice"})
	assert.True(t, domain.IsMalformed(err))
}

func TestRegistrar_SendsOnceAndRecordsAck(t *testing.T) {
	mgr := sessiontest.NewManager(t)
	svc := push.New(store.NewPushKVStore(), nil)
	tr := &fakePushTransport{}
	reg := push.NewRegistrar(mgr, svc, tr, sessiontest.Delegates(), domain.Listeners{})
	ctx := context.Background()
	cfg := domain.PushConfiguration{OwnedIdentity: "alice", Token: "tok"}

	got, err := reg.Register(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, got.ServerAcked)

	got, err = reg.Register(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, got.ServerAcked)
	assert.Equal(t, 1, tr.calls, "acknowledged registration is not resent")

	tr.err = errors.New("relay down")
	got, err = reg.Register(ctx, domain.PushConfiguration{OwnedIdentity: "alice", Token: "tok-2"})
	assert.Error(t, err)
	assert.False(t, got.ServerAcked)
}
