package oidc_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liaohanzhen/cnoauth/oidc"
)

var idTokenKey = []byte("0123456789abcdef0123456789abcdef")

func signIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(idTokenKey)
	require.NoError(t, err)
	return raw
}

func newVerifier() *oidc.IDTokenVerifier {
	return oidc.NewIDTokenVerifier(func(*jwt.Token) (any, error) {
		return idTokenKey, nil
	})
}

func TestIDTokenVerifier_Verify(t *testing.T) {
	verifier := newVerifier()

	t.Run("valid token with matching nonce", func(t *testing.T) {
		raw := signIDToken(t, jwt.MapClaims{"sub": "u1", "nonce": "N123"})

		claims, err := verifier.Verify(raw, "N123")
		require.NoError(t, err)
		assert.Equal(t, "u1", claims["sub"])
	})

	t.Run("nonce mismatch is rejected", func(t *testing.T) {
		raw := signIDToken(t, jwt.MapClaims{"sub": "u1", "nonce": "N123"})

		_, err := verifier.Verify(raw, "Nother")
		assert.ErrorIs(t, err, oidc.ErrNonceMismatch)
	})

	t.Run("absent nonce claim passes", func(t *testing.T) {
		raw := signIDToken(t, jwt.MapClaims{"sub": "u1"})

		_, err := verifier.Verify(raw, "N123")
		assert.NoError(t, err)
	})

	t.Run("empty token is invalid", func(t *testing.T) {
		_, err := verifier.Verify("", "N123")
		assert.ErrorIs(t, err, oidc.ErrIDTokenInvalid)
	})

	t.Run("tampered signature is invalid", func(t *testing.T) {
		raw := signIDToken(t, jwt.MapClaims{"sub": "u1"})

		_, err := verifier.Verify(raw+"x", "")
		assert.ErrorIs(t, err, oidc.ErrIDTokenInvalid)
	})

	t.Run("unsigned alg none is invalid", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"})
		raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = verifier.Verify(raw, "")
		assert.ErrorIs(t, err, oidc.ErrIDTokenInvalid)
	})
}
