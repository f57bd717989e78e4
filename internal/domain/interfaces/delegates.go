package interfaces

import (
	"context"

	domaintypes "ciphersync/internal/domain/types"
)

// IdentityDelegate validates owned identities. It is the only delegate a
// session cannot be opened without.
type IdentityDelegate interface {
	IsOwnedIdentity(ctx context.Context, owned domaintypes.OwnedIdentity) (bool, error)
}

// NotificationPostingDelegate receives a coarse "something changed" signal
// after a session commit that produced listener notifications.
type NotificationPostingDelegate interface {
	IdentityChanged(owned domaintypes.OwnedIdentity)
}

// CreateServerSessionDelegate supplies the bearer token the transport uses to
// authorise calls made on behalf of an owned identity.
type CreateServerSessionDelegate interface {
	ServerSessionToken(ctx context.Context, owned domaintypes.OwnedIdentity) (string, error)
}

// Delegates groups the collaborators threaded through every session.
type Delegates struct {
	Identity      IdentityDelegate
	Notifications NotificationPostingDelegate
	ServerSession CreateServerSessionDelegate
}

// Session is the transactional unit of work components mutate state through.
// Events enqueued on it are delivered only after a successful commit.
type Session interface {
	Context() context.Context
	Txn() Txn
	Identity() IdentityDelegate
	ServerSession() CreateServerSessionDelegate
	Enqueue(event domaintypes.Event)
}
