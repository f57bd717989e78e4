// Package main runs the in-memory relay used by ciphersync during development
// and tests.
//
// HTTP API
//
//	GET /.well-known/ciphersync.json
//	    The relay configuration: websocket URL, TURN servers, map styles and
//	    the address service URL.
//
//	POST /v1/session/challenge, POST /v1/session
//	    Exchange a signed nonce for a bearer token bound to one owned
//	    identity. The first signing key seen for an identity is pinned.
//
//	GET    /v1/inbox/{owned}/messages?limit=N
//	GET    /v1/inbox/{owned}/messages/{uid}/extended
//	GET    /v1/inbox/{owned}/messages/{uid}/attachments/{i}?offset=O&length=L
//	DELETE /v1/inbox/{owned}/messages/{uid}
//	    Read and drain the queue of the authenticated identity.
//
//	POST /v1/queries, PUT /v1/push
//	    Answer a protocol query (echo by default); store a push registration.
//
//	GET /v1/ws?token=T
//	    Websocket delivering {"type":"message"} notices.
//
//	POST /v1/admin/deliver
//	    Queue a message, optionally with an extended payload and attachments.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Responses are JSON except payload downloads, which are raw bytes.
//   - Requests are logged through zap and counted in Prometheus metrics
//     served at /metrics.
//   - The default listen address is :8080.
//
// The relay only ever sees ciphertext and public keys.
package main
