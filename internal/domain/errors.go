package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is a programmer error at session construction, such as
	// a missing identity delegate. It is never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrPersistence means the store failed to begin or commit. The session has
	// been rolled back; the caller must retry the whole unit of work.
	ErrPersistence = errors.New("persistence error")

	// ErrDuplicateCorrelationID is returned when a pending query with the same
	// correlation id already exists.
	ErrDuplicateCorrelationID = errors.New("duplicate correlation id")

	// ErrNotCached is returned by the well-known cache helpers that report a
	// cold miss as an error. The primary lookups report it as ok == false.
	ErrNotCached = errors.New("well-known configuration not cached")

	// ErrUnknownOwnedIdentity is returned when the identity delegate does not
	// recognise the owned identity an ingest call refers to.
	ErrUnknownOwnedIdentity = errors.New("unknown owned identity")

	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("session closed")

	// ErrRejected marks a transport error the server reported as permanent
	// (a 4xx response). Retrying the same request cannot succeed.
	ErrRejected = errors.New("rejected by server")

	// ErrStopScan may be returned from a Txn.Scan callback to end the scan early.
	ErrStopScan = errors.New("stop scan")
)

// MalformedPayloadError reports input an ingest or ledger call cannot
// interpret. State is left untouched and the enclosing session stays usable.
type MalformedPayloadError struct {
	Field  string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload: %s: %s", e.Field, e.Reason)
}

// Malformed builds a *MalformedPayloadError.
func Malformed(field, format string, args ...any) error {
	return &MalformedPayloadError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsMalformed reports whether err is (or wraps) a *MalformedPayloadError.
func IsMalformed(err error) bool {
	var m *MalformedPayloadError
	return errors.As(err, &m)
}
