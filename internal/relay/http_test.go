package relay_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphersync/internal/domain"
	"ciphersync/internal/relay"
)

func TestStatusError_OnlyClientErrorsAreRejections(t *testing.T) {
	status := http.StatusBadRequest
	var gotAuth string
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(status)
	}))
	defer hs.Close()
	c := relay.NewHTTP(hs.URL + "/")

	_, err := c.SendQuery(context.Background(), "tok", domain.PendingServerQuery{CorrelationID: "c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRejected)
	assert.Equal(t, "Bearer tok", gotAuth)

	status = http.StatusBadGateway
	_, err = c.SendQuery(context.Background(), "", domain.PendingServerQuery{CorrelationID: "c"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRejected)
	assert.Empty(t, gotAuth)
}

func TestFetchWellKnown_UsesServerURL(t *testing.T) {
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != relay.WellKnownPath {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"ws_url":"wss://x/ws","turn_urls":["turn:a"],"ttl_seconds":60}`))
	}))
	defer hs.Close()

	entry, err := relay.NewHTTP("http://unused.invalid").FetchWellKnown(context.Background(), domain.ServerURL(hs.URL))
	require.NoError(t, err)
	assert.Equal(t, domain.ServerURL(hs.URL), entry.Server)
	assert.Equal(t, "wss://x/ws", entry.WSURL)
	assert.Equal(t, []string{"turn:a"}, entry.TURNURLs)
	assert.Equal(t, time.Minute, entry.TTL)
}
