// Package auth verifies the operator bearer token presented to the HTTP API.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Principal identifies who made an authenticated request.
type Principal struct {
	Name string
}

type TokenVerifier struct {
	token []byte
	name  string
}

// NewTokenVerifier accepts exactly one shared token. An empty token rejects every request.
func NewTokenVerifier(token string) *TokenVerifier {
	return &TokenVerifier{token: []byte(strings.TrimSpace(token)), name: "operator"}
}

func (v *TokenVerifier) VerifyAccessToken(_ context.Context, accessToken string) (Principal, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Principal{}, ErrMissingToken
	}
	if len(v.token) == 0 || subtle.ConstantTimeCompare([]byte(accessToken), v.token) != 1 {
		return Principal{}, ErrInvalidToken
	}
	return Principal{Name: v.name}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
