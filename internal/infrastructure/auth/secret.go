// Package auth verifies the confirmation secret required by destructive
// administrative operations.
package auth

import (
	"crypto/subtle"
	"errors"

	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/config"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// ErrNoSecretConfigured is returned by NewSecretVerifier when neither a hash nor
// a plaintext secret is set
var ErrNoSecretConfigured = errors.New("admin secret is not configured")

// SecretVerifier checks operator-supplied confirmation secrets
type SecretVerifier struct {
	hash  []byte
	plain []byte
}

// NewSecretVerifier builds a verifier from the admin config. A bcrypt hash takes
// precedence over a plaintext secret.
func NewSecretVerifier(cfg config.AdminConfig) (*SecretVerifier, error) {
	switch {
	case cfg.SecretHash != "":
		if _, err := bcrypt.Cost([]byte(cfg.SecretHash)); err != nil {
			return nil, err
		}
		return &SecretVerifier{hash: []byte(cfg.SecretHash)}, nil
	case cfg.Secret != "":
		return &SecretVerifier{plain: []byte(cfg.Secret)}, nil
	default:
		return nil, ErrNoSecretConfigured
	}
}

// Verify returns shared.ErrInvalidSecret unless secret matches
func (v *SecretVerifier) Verify(secret string) error {
	if v == nil || secret == "" {
		return shared.ErrInvalidSecret
	}
	if v.hash != nil {
		if bcrypt.CompareHashAndPassword(v.hash, []byte(secret)) != nil {
			return shared.ErrInvalidSecret
		}
		return nil
	}
	if subtle.ConstantTimeCompare(v.plain, []byte(secret)) != 1 {
		return shared.ErrInvalidSecret
	}
	return nil
}

// HashSecret produces the bcrypt hash to put in admin.secret_hash
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", ErrNoSecretConfigured
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
