package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medvault/types"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTAuthenticatorValidToken(t *testing.T) {
	a := NewJWTAuthenticator("test-secret")
	tok := signToken(t, "test-secret", jwt.MapClaims{
		"sub":  "alice",
		"role": "patient",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	p, err := a.CurrentUser(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Subject)
	assert.Equal(t, "patient", p.Role)
}

func TestJWTAuthenticatorRejects(t *testing.T) {
	a := NewJWTAuthenticator("test-secret")

	_, err := a.CurrentUser("not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	wrongKey := signToken(t, "other-secret", jwt.MapClaims{"sub": "alice"})
	_, err = a.CurrentUser(wrongKey)
	assert.ErrorIs(t, err, ErrUnauthorized)

	expired := signToken(t, "test-secret", jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	_, err = a.CurrentUser(expired)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestOwnerAuthorizer(t *testing.T) {
	rec := &types.Record{OwnerLabel: "alice"}
	az := OwnerAuthorizer{}

	assert.True(t, az.CanAccess(Principal{Subject: "alice"}, rec))
	assert.True(t, az.CanAccess(Principal{Subject: "dr.bob", Role: "doctor"}, rec))
	assert.False(t, az.CanAccess(Principal{Subject: "mallory"}, rec))
	assert.False(t, az.CanAccess(Principal{Subject: "alice"}, nil))
}

func TestPermissiveAuthorizerAlwaysGrants(t *testing.T) {
	az := PermissiveAuthorizer{}
	assert.True(t, az.CanAccess(Principal{Subject: "anyone"}, &types.Record{OwnerLabel: "alice"}))
}
