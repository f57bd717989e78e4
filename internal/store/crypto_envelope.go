package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"ciphersync/internal/crypto"
)

// envelopeVersion is the newest sealed-envelope format this build can open.
const envelopeVersion = 1

// ErrWrongPassphrase is returned when the passphrase is incorrect or the
// envelope has been modified.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted identity")

// envelope is the on-disk JSON structure holding the ciphertext and KDF
// parameters.
type envelope struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// seal derives a key from passphrase and seals raw into a JSON envelope.
func seal(passphrase string, raw []byte, p kdfParams) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:] /* #nosec G404 */); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(passphrase), salt[:], p.N, p.R, p.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [12]byte // zero nonce; salt‑bound key guarantees uniqueness
	ct := aead.Seal(nil, nonce[:], raw, salt[:])

	return json.Marshal(envelope{
		V:      envelopeVersion,
		Salt:   salt[:],
		N:      p.N,
		R:      p.R,
		P:      p.P,
		Cipher: ct,
	})
}

// unseal authenticates and decrypts an envelope produced by seal.
func unseal(passphrase string, b []byte) ([]byte, error) {
	var bl envelope
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if bl.V > envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", bl.V)
	}

	key, err := scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [12]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

// kdfParams are the scrypt cost parameters.
type kdfParams struct{ N, R, P int }

var defaultKDF = kdfParams{N: 1 << 15, R: 8, P: 1}
