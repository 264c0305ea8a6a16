package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coffer/internal/auth"
	"coffer/internal/economy"
	"coffer/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

type fixedRand struct{ v int }

func (r fixedRand) Intn(n int) int { return r.v % n }

func newTestServer(t *testing.T, opts ...economy.Option) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := economy.NewService(memory.New(), economy.DefaultCatalog(), logger, opts...)
	return New(logger, auth.NewTokenVerifier(testToken), ledger, nil)
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/accounts/1", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthz(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := economy.NewService(memory.New(), nil, logger)
	s := New(logger, auth.NewTokenVerifier(testToken), ledger, func(context.Context) error { return errors.New("db down") })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBalanceOfNewAccount(t *testing.T) {
	s := newTestServer(t)
	rec, body := do(t, s, http.MethodGet, "/v1/accounts/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 42, body["account_id"])
	assert.EqualValues(t, 0, body["cash"])
	assert.Equal(t, economy.DefaultJobID, body["job_id"])
}

func TestInvalidAccountID(t *testing.T) {
	s := newTestServer(t)
	rec, body := do(t, s, http.MethodGet, "/v1/accounts/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_target", body["kind"])
}

func TestCreditAndTransfer(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/v1/accounts/1/credit", `{"amount":200}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 200, body["cash"])

	rec, body = do(t, s, http.MethodPost, "/v1/accounts/1/transfer", `{"to":2,"amount":500}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_funds", body["kind"])
	assert.NotEmpty(t, body["error"])

	rec, _ = do(t, s, http.MethodPost, "/v1/accounts/1/transfer", `{"to":2,"amount":150}`)
	require.Equal(t, http.StatusOK, rec.Code)

	_, body = do(t, s, http.MethodGet, "/v1/accounts/2", "")
	assert.EqualValues(t, 150, body["cash"])
}

func TestValidationMapsToLedgerKinds(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		path, body string
		kind       string
	}{
		{path: "/v1/accounts/1/credit", body: `{"amount":0}`, kind: "invalid_amount"},
		{path: "/v1/accounts/1/slot", body: `{"stake":-3}`, kind: "invalid_amount"},
		{path: "/v1/accounts/1/transfer", body: `{"to":0,"amount":5}`, kind: "invalid_target"},
		{path: "/v1/accounts/1/transfer", body: `{"to":1,"amount":5}`, kind: "invalid_target"},
		{path: "/v1/accounts/1/job", body: `{"job_id":""}`, kind: "unknown_job"},
		{path: "/v1/accounts/1/job", body: `{"job_id":"astronaut"}`, kind: "unknown_job"},
	}
	for _, tc := range tests {
		rec, body := do(t, s, http.MethodPost, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.path+" "+tc.body)
		assert.Equal(t, tc.kind, body["kind"], tc.path+" "+tc.body)
	}
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)
	rec, body := do(t, s, http.MethodPost, "/v1/accounts/1/credit", `{"amount":"lots"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", body["kind"])

	rec, _ = do(t, s, http.MethodPost, "/v1/accounts/1/credit", `{"amount":5,"extra":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkCooldownReturns429(t *testing.T) {
	s := newTestServer(t, economy.WithRand(fixedRand{v: 0}))
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	rec, body := do(t, s, http.MethodPost, "/v1/accounts/1/work", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 500, body["earnings"])

	s.now = func() time.Time { return base.Add(10 * time.Minute) }
	rec, body = do(t, s, http.MethodPost, "/v1/accounts/1/work", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "cooldown_active", body["kind"])
	assert.EqualValues(t, 1200, body["remaining_seconds"])
	assert.Equal(t, "1200", rec.Header().Get("Retry-After"))
}

func TestBorrowLimitAndRepay(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/v1/accounts/1/borrow", `{"amount":10001}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "debt_limit_exceeded", body["kind"])
	assert.EqualValues(t, 10000, body["remaining_capacity"])

	rec, _ = do(t, s, http.MethodPost, "/v1/accounts/1/borrow", `{"amount":1000}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = do(t, s, http.MethodPost, "/v1/accounts/1/repay", `{"amount":1500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1000, body["repaid"])
	assert.EqualValues(t, 0, body["remaining_debt"])

	rec, body = do(t, s, http.MethodPost, "/v1/accounts/1/repay", `{"amount":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_debt", body["kind"])
}

func TestSlotJackpot(t *testing.T) {
	s := newTestServer(t, economy.WithRand(fixedRand{v: len(economy.SlotReel) - 1}))
	_, _ = do(t, s, http.MethodPost, "/v1/accounts/1/credit", `{"amount":300}`)

	rec, body := do(t, s, http.MethodPost, "/v1/accounts/1/slot", `{"stake":300}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3000, body["payout"])
	assert.EqualValues(t, 2700, body["net"])
}

func TestDepositWithdrawAndJobs(t *testing.T) {
	s := newTestServer(t)
	_, _ = do(t, s, http.MethodPost, "/v1/accounts/1/credit", `{"amount":30000}`)

	rec, body := do(t, s, http.MethodPost, "/v1/accounts/1/deposit", `{"amount":5000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5000, body["bank"])

	rec, body = do(t, s, http.MethodPost, "/v1/accounts/1/withdraw", `{"amount":6000}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_funds", body["kind"])

	rec, body = do(t, s, http.MethodPost, "/v1/accounts/1/job", `{"job_id":"clerk"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clerk", body["job_id"])
	assert.EqualValues(t, 0, body["cash"])

	rec, body = do(t, s, http.MethodGet, "/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	jobs, ok := body["jobs"].([]any)
	require.True(t, ok)
	assert.Len(t, jobs, len(economy.DefaultCatalog().List()))
}

func TestLeaderboard(t *testing.T) {
	s := newTestServer(t)
	_, _ = do(t, s, http.MethodPost, "/v1/accounts/1/credit", `{"amount":10}`)
	_, _ = do(t, s, http.MethodPost, "/v1/accounts/2/credit", `{"amount":20}`)

	rec, body := do(t, s, http.MethodGet, "/v1/leaderboard?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries, ok := body["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
	top := entries[0].(map[string]any)
	assert.EqualValues(t, 2, top["account_id"])
	assert.EqualValues(t, 1, top["rank"])

	rec, _ = do(t, s, http.MethodGet, "/v1/leaderboard?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor("storage_unavailable"))
	assert.Equal(t, http.StatusInternalServerError, statusFor("internal"))
}

func TestStorageFailureLogsPrincipal(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	ledger := economy.NewService(memory.New(), nil, logger)
	s := New(logger, auth.NewTokenVerifier(testToken), ledger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/5", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "storage_unavailable", body["kind"])
	assert.Contains(t, logs.String(), `"principal":"operator"`)
}
