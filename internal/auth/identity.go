package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the pre-validated identity attached by the upstream gateway. It is
// parsed exactly once at the boundary and passed through; nothing downstream
// re-reads headers.
type Identity struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
}

var ErrNoIdentity = errors.New("missing or unparseable identity payload")

// FromPayloadHeader decodes the x-user-payload JSON the gateway attaches to
// proxied requests. The payload is trusted verbatim; the gateway already
// verified it.
func FromPayloadHeader(header string) (*Identity, error) {
	if header == "" {
		return nil, ErrNoIdentity
	}
	var raw struct {
		ID       string `json:"id"`
		UserID   string `json:"userId"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal([]byte(header), &raw); err != nil {
		return nil, ErrNoIdentity
	}
	id := raw.ID
	if id == "" {
		id = raw.UserID
	}
	if id == "" {
		return nil, ErrNoIdentity
	}
	return &Identity{UserID: id, Username: raw.Username}, nil
}

type gatewayClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// FromToken parses a gateway-signed token presented at the websocket handshake.
// Handshake-time only; no per-message re-authentication happens afterwards.
func FromToken(tokenString, secret string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &gatewayClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrNoIdentity
	}
	claims, ok := token.Claims.(*gatewayClaims)
	if !ok || claims.Subject == "" {
		return nil, ErrNoIdentity
	}
	return &Identity{UserID: claims.Subject, Username: claims.Username}, nil
}
