package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestFromPayloadHeader(t *testing.T) {
	ident, err := FromPayloadHeader(`{"id":"u1","username":"alice"}`)
	require.NoError(t, err)
	require.Equal(t, "u1", ident.UserID)
	require.Equal(t, "alice", ident.Username)
}

func TestFromPayloadHeaderUserIdFallback(t *testing.T) {
	ident, err := FromPayloadHeader(`{"userId":"u2","username":"bob"}`)
	require.NoError(t, err)
	require.Equal(t, "u2", ident.UserID)
}

func TestFromPayloadHeaderRejectsGarbage(t *testing.T) {
	for _, header := range []string{"", "not json", `{"username":"noid"}`} {
		_, err := FromPayloadHeader(header)
		require.ErrorIs(t, err, ErrNoIdentity, "header %q", header)
	}
}

func signToken(t *testing.T, secret, subject, username string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, gatewayClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestFromToken(t *testing.T) {
	signed := signToken(t, "secret", "u1", "alice")
	ident, err := FromToken(signed, "secret")
	require.NoError(t, err)
	require.Equal(t, "u1", ident.UserID)
	require.Equal(t, "alice", ident.Username)
}

func TestFromTokenRejectsWrongSecret(t *testing.T) {
	signed := signToken(t, "secret", "u1", "alice")
	_, err := FromToken(signed, "other")
	require.ErrorIs(t, err, ErrNoIdentity)
}

func TestFromTokenRejectsMissingSubject(t *testing.T) {
	signed := signToken(t, "secret", "", "alice")
	_, err := FromToken(signed, "secret")
	require.ErrorIs(t, err, ErrNoIdentity)
}

func TestFromTokenRejectsExpired(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, gatewayClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = FromToken(signed, "secret")
	require.ErrorIs(t, err, ErrNoIdentity)
}
