// Package engine is the REST client for the backend's one-shot
// request/response API. It shares nothing with the stream connection and
// keeps working while the stream is down or reconnecting.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rfenwick/tradedesk/internal/domain"
)

// Client is the REST client for the engine API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client for the given API root, e.g.
// "https://engine.example.com/api". The bearer token is attached to every
// request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TriggerAudit asks the engine to start a full audit run.
// POST /audit/run, returns {"success": bool}.
func (c *Client) TriggerAudit(ctx context.Context) (bool, error) {
	body, err := c.do(ctx, http.MethodPost, "/audit/run", nil)
	if err != nil {
		return false, fmt.Errorf("engine: trigger audit: %w", err)
	}

	var resp struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("engine: decode trigger response: %w", err)
	}
	return resp.Success, nil
}

// RepairStage asks the engine to repair one failed stage. The pass/fail
// outcome is carried by the HTTP status; any non-2xx is a failed repair.
// POST /audit/repair with {"stage": name}.
func (c *Client) RepairStage(ctx context.Context, stage string) error {
	payload := map[string]string{"stage": stage}
	if _, err := c.do(ctx, http.MethodPost, "/audit/repair", payload); err != nil {
		return fmt.Errorf("engine: repair %s: %w", stage, err)
	}
	return nil
}

// TuningHistory fetches up to limit historical tuning records, newest-first.
// GET /tuning/history?limit=N.
func (c *Client) TuningHistory(ctx context.Context, limit int) ([]domain.TuningRecord, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	path := "/tuning/history"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("engine: tuning history: %w", err)
	}

	var resp struct {
		Records []domain.TuningRecord `json:"records"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("engine: decode tuning history: %w", err)
	}
	return resp.Records, nil
}

// do executes one authenticated request and returns the response body.
// Non-2xx statuses become errors carrying the status and a truncated body.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, domain.ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := body
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	return body, nil
}

// Compile-time interface check.
var _ domain.EngineAPI = (*Client)(nil)
