package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPConfig configures the catalog client.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPClient implements Client against the catalog REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a catalog client for the given config.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("catalog base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) LessonTemplate(ctx context.Context, lessonID string) (*LessonTemplate, error) {
	body, err := c.get(ctx, "/lessons/"+lessonID)
	if err != nil {
		return nil, err
	}
	var t LessonTemplate
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("decode lesson template: %w", err)
	}
	return &t, nil
}

func (c *HTTPClient) Blocks(ctx context.Context, lessonID string) ([]Block, error) {
	body, err := c.get(ctx, "/lessons/"+lessonID+"/blocks")
	if err != nil {
		return nil, err
	}
	var blocks []Block
	if err := json.Unmarshal(body, &blocks); err != nil {
		return nil, fmt.Errorf("decode block list: %w", err)
	}
	return blocks, nil
}

func (c *HTTPClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, path)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
