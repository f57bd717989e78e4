// Package relayserver is an in-memory relay for development and tests.
//
// It serves the API the relay client in internal/relay speaks: the
// well-known document, challenge-based session tokens, per-identity message
// queues with extended payloads and attachments, protocol queries, push
// registration and a websocket that notifies connected clients of new
// messages. Nothing is persisted.
package relayserver
