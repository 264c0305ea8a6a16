package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsTokenAndBody(t *testing.T) {
	var gotAuth, gotPath, gotRequestID string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotRequestID = r.Header.Get("X-Request-Id")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"repaid":1000,"remaining_debt":0}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok")
	out, err := c.Repay(context.Background(), 12, 1500)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), out.Repaid)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/v1/accounts/12/repay", gotPath)
	assert.NotEmpty(t, gotRequestID)
	assert.EqualValues(t, 1500, gotBody["amount"])
}

func TestClientDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"You are still on break.","kind":"cooldown_active","remaining_seconds":90}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok").Work(context.Background(), 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "cooldown_active", apiErr.Kind)
	assert.Equal(t, int64(90), apiErr.RemainingSeconds)
}

func TestClientPlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Leaderboard(context.Background(), 5)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "bad gateway", apiErr.Message)
	assert.Contains(t, apiErr.Error(), "502")
}

func TestSessionRoundTrip(t *testing.T) {
	Dir = t.TempDir()
	t.Cleanup(func() { Dir = "" })

	_, err := LoadSession()
	require.Error(t, err)

	require.NoError(t, SaveSession(Session{APIBaseURL: "http://x", Token: "abc", AccountID: 9}))
	s, err := LoadSession()
	require.NoError(t, err)
	assert.Equal(t, "abc", s.Token)
	assert.Equal(t, int64(9), s.AccountID)

	require.NoError(t, ClearSession())
	require.NoError(t, ClearSession())
	_, err = LoadSession()
	require.Error(t, err)
}
