// Package query tracks protocol-level queries sent to a relay server from
// creation to resolution.
//
// The Ledger persists every query before it is transmitted, so a crash
// between persisting and sending turns into a retry, never a forgotten query.
// Resolution is idempotent, which absorbs duplicate server responses. The
// Dispatcher owns transmission and the retry policy on top of the Ledger.
package query
