package auth

import (
	"context"
	"errors"
	"testing"
)

func TestVerifyAccessToken(t *testing.T) {
	v := NewTokenVerifier(" s3cret ")
	ctx := context.Background()

	p, err := v.VerifyAccessToken(ctx, "s3cret")
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if p.Name != "operator" {
		t.Fatalf("principal = %+v", p)
	}
	if _, err := v.VerifyAccessToken(ctx, "nope"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := v.VerifyAccessToken(ctx, ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestEmptyConfiguredTokenRejectsAll(t *testing.T) {
	v := NewTokenVerifier("")
	if _, err := v.VerifyAccessToken(context.Background(), "anything"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
	}
	for header, want := range tests {
		if got := BearerToken(header); got != want {
			t.Fatalf("BearerToken(%q) = %q want %q", header, got, want)
		}
	}
}
