// Package client is an HTTP client for the flagmirror API, used by the
// CLI.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is an HTTP client for the flagmirror API
type Client struct {
	BaseURL    string
	SessionKey string
	HTTPClient *http.Client
}

// NewClient creates a new API client. sessionKey pins the CLI to one
// server-side session so context changes survive across invocations.
func NewClient(baseURL, sessionKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		SessionKey: sessionKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Status holds the /api/status response.
type Status struct {
	Status       string `json:"status"`
	Mode         string `json:"mode"`
	Connection   string `json:"connection"`
	Env          string `json:"env"`
	FlagKey      string `json:"flagKey"`
	Fallback     string `json:"fallback"`
	PollInterval string `json:"pollInterval"`
	Redis        string `json:"redis"`
	InitError    string `json:"initError,omitempty"`
}

// FlagResult holds the /api/flag response.
type FlagResult struct {
	FlagKey     string         `json:"flagKey"`
	Value       any            `json:"value"`
	Reason      map[string]any `json:"reason"`
	HashInfo    map[string]any `json:"hashInfo"`
	Context     map[string]any `json:"context"`
	EvaluatedAt string         `json:"evaluatedAt"`
}

// ContextResult holds the /api/context response.
type ContextResult struct {
	SessionKey string         `json:"sessionKey"`
	Type       string         `json:"type"`
	Context    map[string]any `json:"context"`
	UpdatedAt  string         `json:"updatedAt,omitempty"`
}

// SetContextParams is the POST /api/context request body.
type SetContextParams struct {
	Type     string `json:"type"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`
}

// LoadTestParams is the POST /api/loadtest request body.
type LoadTestParams struct {
	Requests    int `json:"requests"`
	Concurrency int `json:"concurrency"`
}

// LoadTestResult holds the load test summary.
type LoadTestResult struct {
	Total             int     `json:"totalRequests"`
	Successful        int     `json:"successfulRequests"`
	Failed            int     `json:"failedRequests"`
	Concurrency       int     `json:"concurrency"`
	AvgLatencyMs      float64 `json:"avgLatencyMs"`
	DurationSeconds   float64 `json:"durationSeconds"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
}

// GetStatus retrieves the service status
func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.get(ctx, "/api/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetFlag evaluates the configured flag under this session's context
func (c *Client) GetFlag(ctx context.Context) (*FlagResult, error) {
	var out FlagResult
	if err := c.get(ctx, "/api/flag", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContext retrieves the session's evaluation context
func (c *Client) GetContext(ctx context.Context) (*ContextResult, error) {
	var out ContextResult
	if err := c.get(ctx, "/api/context", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetContext replaces the session's evaluation context
func (c *Client) SetContext(ctx context.Context, params SetContextParams) (*ContextResult, error) {
	var out ContextResult
	if err := c.post(ctx, "/api/context", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunLoadTest triggers a load test and waits for the summary
func (c *Client) RunLoadTest(ctx context.Context, params LoadTestParams) (*LoadTestResult, error) {
	var out LoadTestResult
	if err := c.post(ctx, "/api/loadtest", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stream connects to the SSE endpoint and invokes onData for each data
// frame until ctx is cancelled or the server closes the stream.
// Heartbeat comments are skipped.
func (c *Client) Stream(ctx context.Context, onData func(payload []byte)) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/api/stream", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	// No overall timeout: the stream legitimately runs for minutes.
	httpc := &http.Client{}
	resp, err := httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			onData([]byte(payload))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) setHeaders(req *http.Request) {
	if c.SessionKey != "" {
		req.Header.Set("X-Session-Key", c.SessionKey)
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
