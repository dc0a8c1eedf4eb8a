package homeassistant

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenAuth(t *testing.T) {
	auth := NewTokenAuth("abc123")
	header := http.Header{}
	auth.Authorize(header)
	assert.Equal(t, "Bearer abc123", header.Get("Authorization"))
	assert.Equal(t, "abc123", auth.AccessToken())
}

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestInspectToken(t *testing.T) {
	issued := time.Now().Add(-time.Hour)
	expires := time.Now().Add(time.Hour)
	token := signedToken(t, jwt.RegisteredClaims{
		Issuer:    "abcdef",
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	})

	info, err := InspectToken(token)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", info.Issuer)
	assert.WithinDuration(t, issued, info.IssuedAt, time.Second)
	assert.False(t, info.Expired())
}

func TestInspectTokenExpired(t *testing.T) {
	token := signedToken(t, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	info, err := InspectToken(token)
	require.NoError(t, err)
	assert.True(t, info.Expired())
}

func TestInspectTokenGarbage(t *testing.T) {
	_, err := InspectToken("not-a-token")
	assert.Error(t, err)
}
