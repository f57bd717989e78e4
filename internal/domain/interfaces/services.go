package interfaces

import domaintypes "ciphersync/internal/domain/types"

// IdentityService creates, retrieves, and inspects your identity keys.
type IdentityService interface {
	GenerateIdentity(passphrase string, server domaintypes.ServerURL) (
		domaintypes.Identity,
		domaintypes.OwnedIdentity,
		error,
	)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}
