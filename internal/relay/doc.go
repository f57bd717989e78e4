// Package relay provides the HTTP client ciphersync uses to talk to a relay
// server.
//
// The relay queues encrypted messages per owned identity, answers protocol
// queries, accepts push registrations and publishes its configuration at
// /.well-known/ciphersync.json. This package implements the engine's
// transport interfaces on top of that API:
//   - domain.InboxTransport: list, download and delete queued messages.
//   - domain.QueryTransport: transmit a pending query.
//   - domain.PushTransport: register a push configuration.
//   - domain.WellKnownFetcher: download the well-known document.
//
// TokenSource implements domain.CreateServerSessionDelegate by signing a
// relay challenge with the identity's Ed25519 key. Watch follows the relay's
// websocket for new-message notices.
//
// All requests are JSON over HTTP and accept a context for cancellation and
// deadlines. Non-2xx statuses are returned as *StatusError; 4xx statuses also
// match domain.ErrRejected.
package relay
