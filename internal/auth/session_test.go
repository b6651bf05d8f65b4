package auth

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	s, err := NewSigner(time.Hour)
	require.NoError(t, err)

	userID := uuid.New()
	token, err := s.CreateJWT(userID)
	require.NoError(t, err)

	got, err := s.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestForeignKeyRejected(t *testing.T) {
	a, err := NewSigner(0)
	require.NoError(t, err)
	b, err := NewSigner(0)
	require.NoError(t, err)

	token, err := a.CreateJWT(uuid.New())
	require.NoError(t, err)
	_, err = b.AuthenticateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenRejected(t *testing.T) {
	s, err := NewSigner(0)
	require.NoError(t, err)
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := token.SignedString(s.privateKey)
	require.NoError(t, err)

	_, err = s.AuthenticateJWT(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMalformedSubjectRejected(t *testing.T) {
	s, err := NewSigner(0)
	require.NoError(t, err)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{"sub": "bob"}).SignedString(s.privateKey)
	require.NoError(t, err)

	_, err = s.AuthenticateJWT(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenTTL(t *testing.T) {
	for _, never := range []string{"", "0", "never"} {
		d, err := ParseTokenTTL(never)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := ParseTokenTTL("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	_, err = ParseTokenTTL("soon")
	assert.Error(t, err)
}

func TestLoadSigner(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "key")
	pubPath := filepath.Join(dir, "key.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o600))

	s, err := LoadSigner(privPath, pubPath, 0)
	require.NoError(t, err)
	id := uuid.New()
	token, err := s.CreateJWT(id)
	require.NoError(t, err)
	got, err := s.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = LoadSigner(filepath.Join(dir, "missing"), pubPath, 0)
	assert.Error(t, err)
}
