package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphersync/internal/domain"
)

func TestBus_GlobalAndPerIdentityTopics(t *testing.T) {
	b := NewBus(nil)

	var all, onlyAlice []domain.OwnedIdentity
	unsubAll, err := b.Subscribe(func(o domain.OwnedIdentity) { all = append(all, o) })
	require.NoError(t, err)
	_, err = b.SubscribeIdentity("alice", func(o domain.OwnedIdentity) { onlyAlice = append(onlyAlice, o) })
	require.NoError(t, err)

	b.IdentityChanged("alice")
	b.IdentityChanged("bob")

	assert.Equal(t, []domain.OwnedIdentity{"alice", "bob"}, all)
	assert.Equal(t, []domain.OwnedIdentity{"alice"}, onlyAlice)

	unsubAll()
	b.IdentityChanged("carol")
	assert.Len(t, all, 2)
}

func TestBus_Async(t *testing.T) {
	b := NewBus(nil)
	var (
		mu  sync.Mutex
		got []domain.OwnedIdentity
	)
	_, err := b.SubscribeAsync(func(o domain.OwnedIdentity) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, o)
	})
	require.NoError(t, err)

	b.IdentityChanged("alice")
	b.WaitAsync()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.OwnedIdentity{"alice"}, got)
}
