package agent

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
)

// HTTPConfig configures the HTTP agent client.
type HTTPConfig struct {
	// BaseURL is the run service root, e.g. "https://agent.example.com".
	BaseURL string

	// APIKey is sent as the x-api-key header when non-empty.
	APIKey string

	// Timeout bounds a single HTTP request. Default: 30s.
	Timeout time.Duration
}

// HTTPClient talks to the run service over its REST surface.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates an agent client for the given config.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("agent base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) CreateThread(ctx context.Context) (*Thread, error) {
	body, err := c.do(ctx, http.MethodPost, "/threads", map[string]any{})
	if err != nil {
		return nil, err
	}

	var t Thread
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, &ErrInvalidState{Err: fmt.Errorf("decode thread: %w", err)}
	}
	if t.ID == "" {
		return nil, &ErrInvalidState{Err: fmt.Errorf("create thread: empty thread_id")}
	}
	return &t, nil
}

func (c *HTTPClient) ThreadState(ctx context.Context, threadID string) (*ThreadState, error) {
	body, err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/state", nil)
	if err != nil {
		return nil, c.mapThreadErr(err, threadID)
	}

	var st ThreadState
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, &ErrInvalidState{Err: fmt.Errorf("decode thread state: %w", err)}
	}
	return &st, nil
}

// SendMessage starts a streaming run. The call returns once the service
// accepts the run (stream start); the body is discarded because run
// completion is observed through ThreadState, not the stream.
func (c *HTTPClient) SendMessage(ctx context.Context, threadID string, msgs []Message, runCtx RunContext) error {
	payload := map[string]any{
		"input":   map[string]any{"messages": msgs},
		"context": runCtx,
	}
	_, err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs/stream", payload)
	if err != nil {
		return c.mapThreadErr(err, threadID)
	}
	return nil
}

func (c *HTTPClient) Health(ctx context.Context) (*Health, error) {
	body, err := c.do(ctx, http.MethodGet, "/ok", nil)
	if err != nil {
		return nil, err
	}

	var h Health
	if err := json.Unmarshal(body, &h); err != nil {
		// Older deployments answer with a bare 200 and no body.
		return &Health{OK: true}, nil
	}
	return &h, nil
}

// do issues a request and returns the response body, mapping
// non-2xx statuses to the error taxonomy.
func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ErrUnavailable{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &ErrUnavailable{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ErrRateLimit{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("HTTP 429 for %s", path),
		}
	case resp.StatusCode >= 500:
		return nil, &ErrUnavailable{Err: fmt.Errorf("HTTP %d for %s", resp.StatusCode, path)}
	default:
		return nil, fmt.Errorf("HTTP %d for %s: %s", resp.StatusCode, path, truncate(data, 200))
	}
}

// errNotFound is an internal marker mapped to ErrThreadNotFound once the
// thread id is known.
var errNotFound = fmt.Errorf("not found")

func (c *HTTPClient) mapThreadErr(err error, threadID string) error {
	if err == errNotFound {
		return &ErrThreadNotFound{ThreadID: threadID}
	}
	return err
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
