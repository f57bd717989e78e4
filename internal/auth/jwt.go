package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ciphersync/internal/domain"
)

// Claims binds a token to one owned identity.
type Claims struct {
	Owned string `json:"sub"`
	jwt.RegisteredClaims
}

// TokenConfig configures token signing.
type TokenConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// DefaultTokenConfig returns a one hour configuration signed with secret.
func DefaultTokenConfig(secret string) TokenConfig {
	return TokenConfig{
		Secret: secret,
		Expiry: time.Hour,
		Issuer: "ciphersync-relay",
	}
}

// CreateToken signs a token for owned and returns it with its expiry.
func CreateToken(owned domain.OwnedIdentity, cfg TokenConfig) (string, time.Time, error) {
	if cfg.Secret == "" {
		return "", time.Time{}, errors.New("missing secret")
	}
	if owned == "" {
		return "", time.Time{}, errors.New("missing owned identity")
	}
	if cfg.Expiry <= 0 {
		return "", time.Time{}, errors.New("invalid expiry")
	}

	jtiBytes := make([]byte, 16)
	if _, err := rand.Read(jtiBytes); err != nil {
		return "", time.Time{}, err
	}
	now := time.Now()
	exp := now.Add(cfg.Expiry)

	claims := Claims{
		Owned: owned.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        hex.EncodeToString(jtiBytes),
			Subject:   owned.String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyToken checks signature, issuer and expiry and returns the claims.
func VerifyToken(tokenString string, cfg TokenConfig) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("missing secret")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Owned == "" {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}
