// Package auth issues and verifies the bearer tokens a relay hands out after
// an owned identity proved possession of its signing key.
package auth
