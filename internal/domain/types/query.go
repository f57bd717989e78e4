package types

import "time"

// QueryKind enumerates the protocol queries the engine sends to a server.
type QueryKind string

const (
	QueryDeviceManagement     QueryKind = "device-management"
	QueryGroup                QueryKind = "group-query"
	QueryOwnedDeviceDiscovery QueryKind = "owned-device-discovery"
	QueryOther                QueryKind = "other"
)

// Valid reports whether k is one of the known kinds.
func (k QueryKind) Valid() bool {
	switch k {
	case QueryDeviceManagement, QueryGroup, QueryOwnedDeviceDiscovery, QueryOther:
		return true
	}
	return false
}

// QueryState is the position of a pending query in its lifecycle.
type QueryState string

const (
	QueryCreated  QueryState = "created"
	QuerySent     QueryState = "sent"
	QueryResolved QueryState = "resolved"
	QueryFailed   QueryState = "failed"
)

// FailureReason explains why a query failed and whether it may be retried.
type FailureReason struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// NewQuery is the caller input for creating a pending query.
type NewQuery struct {
	CorrelationID CorrelationID
	OwnedIdentity OwnedIdentity
	Kind          QueryKind
	Request       []byte
}

// PendingServerQuery is one request sent to the server and not yet consumed.
type PendingServerQuery struct {
	CorrelationID CorrelationID  `json:"correlation_id"`
	OwnedIdentity OwnedIdentity  `json:"owned_identity,omitempty"`
	Kind          QueryKind      `json:"kind"`
	Request       []byte         `json:"request"`
	State         QueryState     `json:"state"`
	CreatedAt     time.Time      `json:"created_at"`
	Attempts      int            `json:"attempts"`
	LastAttemptAt time.Time      `json:"last_attempt_at,omitempty"`
	Failure       *FailureReason `json:"failure,omitempty"`
	Response      []byte         `json:"response,omitempty"`
	ResolvedAt    time.Time      `json:"resolved_at,omitempty"`
}

// LastActivity is the last attempt time, or the creation time when the query
// has never been transmitted.
func (q PendingServerQuery) LastActivity() time.Time {
	if q.LastAttemptAt.IsZero() {
		return q.CreatedAt
	}
	return q.LastAttemptAt
}

// Retryable reports whether a new transmission attempt may be recorded.
func (q PendingServerQuery) Retryable() bool {
	switch q.State {
	case QueryCreated, QuerySent:
		return true
	case QueryFailed:
		return q.Failure == nil || q.Failure.Retryable
	}
	return false
}
