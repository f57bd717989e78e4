// Package commands defines the ciphersync CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - init               Create the local identity
//   - fingerprint        Print the identity fingerprint
//   - fetch              Synchronise the inbox with the relay once
//   - inbox list         List stored messages and attachment progress
//   - inbox attachment   Write a completed attachment to a file
//   - query send|list|retry
//   - wellknown show|refresh
//   - push register      Register a push token with the relay
//   - watch              Follow the relay websocket and sync on notices
//
// # Implementation
//
// The root command loads CIPHERSYNC_* configuration, applies flag overrides
// and builds the app.Wire before any subcommand runs. Commands that talk to
// the relay unlock the identity with -p and work through an app.Engine.
package commands
