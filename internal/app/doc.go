// Package app wires application dependencies for the CLI.
//
// Config is read from CIPHERSYNC_* environment variables and overridden by
// command-line flags. NewWire builds the logger, metrics, store and the
// identity-independent services; Wire.Unlock binds an unlocked identity and
// yields an Engine holding the relay client, the session delegates and the
// components that talk to the relay.
package app
