// Package push keeps the push notification configuration of each owned
// identity and registers it with the relay.
package push
