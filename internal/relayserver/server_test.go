package relayserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphersync/internal/auth"
	"ciphersync/internal/crypto"
	"ciphersync/internal/domain"
	"ciphersync/internal/relay"
	"ciphersync/internal/services/identity"
)

type fixture struct {
	srv    *Server
	http   *httptest.Server
	client *relay.HTTP
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := New(Config{
		TokenConfig: auth.TokenConfig{Secret: "test-secret", Expiry: time.Hour, Issuer: "test"},
		WellKnown: relay.WellKnownDocument{
			TURNURLs:   []string{"turn:turn.test:3478"},
			AddressURL: "https://address.test",
			TTLSeconds: 600,
		},
		AdminToken: "admin",
	}, nil, nil)
	hs := httptest.NewServer(srv.Router())
	t.Cleanup(hs.Close)
	return &fixture{srv: srv, http: hs, client: relay.NewHTTP(hs.URL)}
}

func newUnlocked(t *testing.T) *identity.Unlocked {
	t.Helper()
	xpriv, xpub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	edpriv, edpub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	return identity.NewUnlocked(domain.Identity{XPriv: xpriv, XPub: xpub, EdPriv: edpriv, EdPub: edpub})
}

func (f *fixture) token(t *testing.T, u *identity.Unlocked) string {
	t.Helper()
	tok, err := relay.NewTokenSource(f.client, u, nil).ServerSessionToken(context.Background(), u.Owned())
	require.NoError(t, err)
	return tok
}

func TestRelay_InboxRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := newUnlocked(t)
	tok := f.token(t, u)

	uid, err := f.client.Deliver(ctx, "admin", relay.DeliverRequest{
		Owned:            u.Owned(),
		EncryptedPayload: []byte("ciphertext"),
		ExtendedPayload:  []byte("extended"),
		Attachments:      [][]byte{[]byte("0123456789")},
	})
	require.NoError(t, err)

	msgs, err := f.client.FetchMessages(ctx, tok, u.Owned(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, uid, msgs[0].UID)
	assert.True(t, msgs[0].HasExtendedPayload)
	assert.Equal(t, []domain.AttachmentDescriptor{{Index: 0, ExpectedSize: 10}}, msgs[0].Attachments)

	ext, err := f.client.FetchExtendedPayload(ctx, tok, u.Owned(), uid)
	require.NoError(t, err)
	assert.Equal(t, "extended", string(ext))

	part, err := f.client.FetchAttachmentRange(ctx, tok, u.Owned(), uid, 0, domain.ByteRange{Offset: 3, Length: 4})
	require.NoError(t, err)
	assert.Equal(t, "3456", string(part))

	_, err = f.client.FetchAttachmentRange(ctx, tok, u.Owned(), uid, 0, domain.ByteRange{Offset: 8, Length: 4})
	assert.ErrorIs(t, err, domain.ErrRejected)

	require.NoError(t, f.client.DeleteMessage(ctx, tok, u.Owned(), uid))
	err = f.client.DeleteMessage(ctx, tok, u.Owned(), uid)
	var se *relay.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.ErrorIs(t, err, domain.ErrRejected)
}

func TestRelay_InboxIsPrivate(t *testing.T) {
	f := newFixture(t)
	alice, bob := newUnlocked(t), newUnlocked(t)
	tok := f.token(t, bob)

	_, err := f.client.FetchMessages(context.Background(), tok, alice.Owned(), 0)
	var se *relay.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)

	_, err = f.client.FetchMessages(context.Background(), "garbage", bob.Owned(), 0)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestRelay_AdminTokenRequired(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.Deliver(context.Background(), "wrong", relay.DeliverRequest{
		Owned:            "x",
		EncryptedPayload: []byte("p"),
	})
	assert.ErrorIs(t, err, domain.ErrRejected)
}

func TestRelay_TokenSourceCachesToken(t *testing.T) {
	f := newFixture(t)
	u := newUnlocked(t)
	ts := relay.NewTokenSource(f.client, u, nil)
	ctx := context.Background()

	a, err := ts.ServerSessionToken(ctx, u.Owned())
	require.NoError(t, err)
	b, err := ts.ServerSessionToken(ctx, u.Owned())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = ts.ServerSessionToken(ctx, "someone-else")
	assert.ErrorIs(t, err, domain.ErrUnknownOwnedIdentity)

	ts.Invalidate()
	c, err := ts.ServerSessionToken(ctx, u.Owned())
	require.NoError(t, err)
	claims, err := auth.VerifyToken(c, f.srv.cfg.TokenConfig)
	require.NoError(t, err)
	assert.Equal(t, u.Owned().String(), claims.Owned)
}

func TestRelay_WellKnownQueryAndPush(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := newUnlocked(t)
	tok := f.token(t, u)

	entry, err := f.client.FetchWellKnown(ctx, domain.ServerURL(f.http.URL))
	require.NoError(t, err)
	assert.Equal(t, "ws://"+f.http.Listener.Addr().String()+"/v1/ws", entry.WSURL)
	assert.Equal(t, []string{"turn:turn.test:3478"}, entry.TURNURLs)
	assert.Equal(t, 10*time.Minute, entry.TTL)

	resp, err := f.client.SendQuery(ctx, tok, domain.PendingServerQuery{
		CorrelationID: "c-1",
		OwnedIdentity: u.Owned(),
		Kind:          domain.QueryGroup,
		Request:       []byte("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(resp))

	_, err = f.client.SendQuery(ctx, tok, domain.PendingServerQuery{CorrelationID: "c-2", Kind: "bogus"})
	assert.ErrorIs(t, err, domain.ErrRejected)

	cfg := domain.PushConfiguration{OwnedIdentity: u.Owned(), Token: "apns-1"}
	require.NoError(t, f.client.RegisterPush(ctx, tok, cfg))
	got, ok := f.srv.Push(u.Owned())
	require.True(t, ok)
	assert.Equal(t, "apns-1", got.Token)
}

func TestRelay_WatchReceivesDeliveryNotice(t *testing.T) {
	f := newFixture(t)
	u := newUnlocked(t)
	tok := f.token(t, u)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notices := make(chan relay.Notice, 1)
	done := make(chan error, 1)
	go func() {
		done <- relay.Watch(ctx, "ws"+f.http.URL[len("http"):]+"/v1/ws", tok, func(n relay.Notice) {
			notices <- n
		})
	}()
	require.Eventually(t, func() bool { return f.srv.hub.count(u.Owned()) == 1 }, 5*time.Second, 10*time.Millisecond)

	uid, err := f.client.Deliver(context.Background(), "admin", relay.DeliverRequest{
		Owned:            u.Owned(),
		EncryptedPayload: []byte("p"),
	})
	require.NoError(t, err)

	select {
	case n := <-notices:
		assert.Equal(t, relay.NoticeMessage, n.Type)
		assert.Equal(t, uid, n.UID)
	case <-time.After(5 * time.Second):
		t.Fatal("no notice received")
	}

	cancel()
	assert.NoError(t, <-done)
}
