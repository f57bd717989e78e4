// Package inbox persists and classifies what the relay delivers for an owned
// identity: messages, extended payloads, attachment chunks and the
// listed-and-delete marker.
//
// Every call runs inside a caller-supplied fetch session. Soft conditions
// (duplicate delivery, a chunk arriving before its message) are reported as
// typed outcomes; only malformed input, unknown identities and store failures
// are errors.
package inbox
