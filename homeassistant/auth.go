package homeassistant

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Auth supplies credentials for Home Assistant API calls. The REST client
// applies it to every request, the websocket connector uses the raw token
// for its handshake.
type Auth interface {
	Authorize(header http.Header)
	AccessToken() string
}

// TokenAuth authenticates with a long-lived access token.
type TokenAuth struct {
	token string
}

func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: token}
}

func (a *TokenAuth) Authorize(header http.Header) {
	header.Set("Authorization", "Bearer "+a.token)
}

func (a *TokenAuth) AccessToken() string {
	return a.token
}

// TokenInfo is what a long-lived token reveals about itself without
// verification.
type TokenInfo struct {
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (i *TokenInfo) Expired() bool {
	return !i.ExpiresAt.IsZero() && time.Now().After(i.ExpiresAt)
}

// InspectToken decodes a long-lived access token. Home Assistant issues
// them as JWTs, so an expired or truncated token can be diagnosed before
// the first 401.
func InspectToken(token string) (*TokenInfo, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return nil, errors.Wrap(err, "api_key is not a home assistant token")
	}
	info := &TokenInfo{Issuer: claims.Issuer}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
