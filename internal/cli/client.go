package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coffer/internal/economy"

	"github.com/google/uuid"
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// APIError is a non-2xx response decoded from the API's error body.
type APIError struct {
	Status            int    `json:"-"`
	Message           string `json:"error"`
	Kind              string `json:"kind"`
	RemainingSeconds  int64  `json:"remaining_seconds,omitempty"`
	RemainingCapacity int64  `json:"remaining_capacity,omitempty"`
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func accountPath(id int64, action string) string {
	p := "/v1/accounts/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) Balance(ctx context.Context, id int64) (economy.Balance, error) {
	var out economy.Balance
	err := c.jsonRequest(ctx, http.MethodGet, accountPath(id, ""), nil, &out)
	return out, err
}

func (c *Client) Work(ctx context.Context, id int64) (economy.WorkResult, error) {
	var out economy.WorkResult
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(id, "work"), nil, &out)
	return out, err
}

func (c *Client) Slot(ctx context.Context, id, stake int64) (economy.SlotResult, error) {
	var out economy.SlotResult
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(id, "slot"), map[string]any{"stake": stake}, &out)
	return out, err
}

func (c *Client) CoinFlip(ctx context.Context, id, stake int64) (economy.CoinFlipResult, error) {
	var out economy.CoinFlipResult
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(id, "coinflip"), map[string]any{"stake": stake}, &out)
	return out, err
}

func (c *Client) Transfer(ctx context.Context, from, to, amount int64) error {
	return c.jsonRequest(ctx, http.MethodPost, accountPath(from, "transfer"), map[string]any{
		"to":     to,
		"amount": amount,
	}, nil)
}

func (c *Client) Borrow(ctx context.Context, id, amount int64) error {
	return c.jsonRequest(ctx, http.MethodPost, accountPath(id, "borrow"), map[string]any{"amount": amount}, nil)
}

func (c *Client) Repay(ctx context.Context, id, amount int64) (economy.RepayResult, error) {
	var out economy.RepayResult
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(id, "repay"), map[string]any{"amount": amount}, &out)
	return out, err
}

// Move calls one of the balance-returning amount endpoints: deposit, withdraw, credit or debit.
func (c *Client) Move(ctx context.Context, id int64, action string, amount int64) (economy.Balance, error) {
	var out economy.Balance
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(id, action), map[string]any{"amount": amount}, &out)
	return out, err
}

func (c *Client) ChangeJob(ctx context.Context, id int64, jobID string) (economy.Balance, error) {
	var out economy.Balance
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(id, "job"), map[string]any{"job_id": jobID}, &out)
	return out, err
}

func (c *Client) Jobs(ctx context.Context) ([]economy.JobDefinition, error) {
	var out struct {
		Jobs []economy.JobDefinition `json:"jobs"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/jobs", nil, &out)
	return out.Jobs, err
}

func (c *Client) Leaderboard(ctx context.Context, limit int) ([]economy.LeaderboardEntry, error) {
	path := "/v1/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Entries []economy.LeaderboardEntry `json:"entries"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out.Entries, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
