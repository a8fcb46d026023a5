package auth

import (
	"testing"

	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSecretVerifier_Hash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	v, err := NewSecretVerifier(config.AdminConfig{SecretHash: string(hash), Secret: "ignored"})
	require.NoError(t, err)

	assert.NoError(t, v.Verify("s3cret"))
	assert.ErrorIs(t, v.Verify("ignored"), shared.ErrInvalidSecret)
	assert.ErrorIs(t, v.Verify(""), shared.ErrInvalidSecret)
}

func TestSecretVerifier_Plain(t *testing.T) {
	v, err := NewSecretVerifier(config.AdminConfig{Secret: "s3cret"})
	require.NoError(t, err)

	assert.NoError(t, v.Verify("s3cret"))
	assert.ErrorIs(t, v.Verify("s3cre"), shared.ErrInvalidSecret)
	assert.ErrorIs(t, v.Verify("s3cret "), shared.ErrInvalidSecret)
}

func TestSecretVerifier_Misconfigured(t *testing.T) {
	_, err := NewSecretVerifier(config.AdminConfig{})
	assert.ErrorIs(t, err, ErrNoSecretConfigured)

	_, err = NewSecretVerifier(config.AdminConfig{SecretHash: "not-a-hash"})
	assert.Error(t, err)

	var v *SecretVerifier
	assert.ErrorIs(t, v.Verify("anything"), shared.ErrInvalidSecret)
}

func TestHashSecret(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)

	v, err := NewSecretVerifier(config.AdminConfig{SecretHash: hash})
	require.NoError(t, err)
	assert.NoError(t, v.Verify("s3cret"))

	_, err = HashSecret("")
	assert.ErrorIs(t, err, ErrNoSecretConfigured)
}
