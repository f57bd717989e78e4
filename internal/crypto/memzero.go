package crypto

import "runtime"

// Wipe zeroes b. Keys derived for the identity envelope and decrypted
// identity material pass through here once they are no longer needed.
//
//go:noinline
func Wipe(b []byte) {
	clear(b)
	runtime.KeepAlive(&b)
}
