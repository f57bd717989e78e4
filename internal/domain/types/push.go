package types

import "time"

// PushConfiguration is the push token registration for one owned identity.
type PushConfiguration struct {
	OwnedIdentity OwnedIdentity     `json:"owned_identity"`
	Token         string            `json:"token"`
	DeviceName    string            `json:"device_name,omitempty"`
	MultiDevice   bool              `json:"multi_device"`
	Parameters    map[string]string `json:"parameters,omitempty"`
	RegisteredAt  time.Time         `json:"registered_at"`
	ServerAcked   bool              `json:"server_acked"`
	ServerAckedAt time.Time         `json:"server_acked_at,omitempty"`
}
