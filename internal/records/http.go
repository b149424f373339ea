package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPConfig configures the document store client.
type HTTPConfig struct {
	// Endpoint is the store API root, e.g. "https://store.example.com/v1".
	Endpoint string

	// ProjectID scopes all requests.
	ProjectID string

	// APIKey authenticates server-side access.
	APIKey string

	// DatabaseID and CollectionID locate the practice session records.
	DatabaseID   string
	CollectionID string

	// Timeout bounds a single HTTP request. Default: 15s.
	Timeout time.Duration
}

// HTTPClient implements Client against a document CRUD API.
type HTTPClient struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPClient creates a store client for the given config.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("store endpoint is required")
	}
	if cfg.DatabaseID == "" || cfg.CollectionID == "" {
		return nil, fmt.Errorf("store database and collection ids are required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &HTTPClient{cfg: cfg, client: &http.Client{Timeout: timeout}}, nil
}

type documentEnvelope struct {
	ID string `json:"$id"`
}

func (c *HTTPClient) collectionPath() string {
	return fmt.Sprintf("/databases/%s/collections/%s/documents", c.cfg.DatabaseID, c.cfg.CollectionID)
}

func (c *HTTPClient) CreateSession(ctx context.Context, payload SessionPayload) (string, error) {
	if payload.SessionID == "" {
		return "", fmt.Errorf("create session: missing session_id")
	}

	body := map[string]any{
		"documentId": uuid.NewString(),
		"data":       payload,
	}
	respBody, err := c.do(ctx, http.MethodPost, c.collectionPath(), body)
	if err != nil {
		return "", fmt.Errorf("create session record: %w", err)
	}

	var env documentEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return "", fmt.Errorf("decode created record: %w", err)
	}
	if env.ID == "" {
		return "", fmt.Errorf("create session record: store returned no id")
	}
	return env.ID, nil
}

func (c *HTTPClient) PatchSession(ctx context.Context, recordID string, patch SessionPatch) error {
	if recordID == "" {
		return fmt.Errorf("patch session: missing record id")
	}

	body := map[string]any{"data": patch}
	_, err := c.do(ctx, http.MethodPatch, c.collectionPath()+"/"+recordID, body)
	if err != nil {
		return fmt.Errorf("patch session record %s: %w", recordID, err)
	}
	return nil
}

func (c *HTTPClient) SessionForStudent(ctx context.Context, studentID, lessonID string) (*StoredSession, error) {
	q := url.Values{}
	q.Set("student_id", studentID)
	q.Set("lesson_id", lessonID)
	q.Set("status", "active")
	q.Set("limit", "1")

	respBody, err := c.do(ctx, http.MethodGet, c.collectionPath()+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("query session records: %w", err)
	}

	var list struct {
		Documents []json.RawMessage `json:"documents"`
	}
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, fmt.Errorf("decode record list: %w", err)
	}
	if len(list.Documents) == 0 {
		return nil, nil
	}

	doc := list.Documents[0]
	var env documentEnvelope
	if err := json.Unmarshal(doc, &env); err != nil {
		return nil, fmt.Errorf("decode record envelope: %w", err)
	}
	var payload SessionPayload
	if err := json.Unmarshal(doc, &payload); err != nil {
		return nil, fmt.Errorf("decode record payload: %w", err)
	}
	return &StoredSession{RecordID: env.ID, Payload: payload}, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Endpoint+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ProjectID != "" {
		req.Header.Set("X-Project", c.cfg.ProjectID)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, path)
	}
	return data, nil
}
