package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nzaccagnino/go-notepad/internal/config"
)

const APIKeyHeader = "X-API-Key"

var ErrNotConfigured = errors.New("remote notes are not configured")

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notes api %d: %s", e.StatusCode, e.Message)
}

// DecodeError means a note's content was not valid base64.
type DecodeError struct {
	NoteID string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("note %s: invalid content encoding: %v", e.NoteID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Note is the remote representation. Content is base64 on the wire and is
// left that way here; call Decode to get the text.
type Note struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (n Note) Decode() (string, error) {
	raw, err := base64.StdEncoding.DecodeString(n.Content)
	if err != nil {
		return "", &DecodeError{NoteID: n.ID, Err: err}
	}
	return string(raw), nil
}

// Modified is the note's last change time, falling back to its creation.
func (n Note) Modified() time.Time {
	if !n.UpdatedAt.IsZero() {
		return n.UpdatedAt
	}
	return n.CreatedAt
}

type UpsertNoteRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client talks to the notes API. The endpoint and key are read on every
// call, so Configure takes effect for the next request.
type Client struct {
	mu         sync.RWMutex
	cfg        config.SyncConfig
	httpClient *http.Client
}

func NewClient(cfg config.SyncConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{httpClient: httpClient}
	c.Configure(cfg)
	return c
}

func (c *Client) Configure(cfg config.SyncConfig) {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	cfg.Key = strings.TrimSpace(cfg.Key)
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

func (c *Client) IsConfigured() bool {
	return c.settings().Configured()
}

func (c *Client) settings() config.SyncConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// CreateOrUpdate uploads content under name. With an empty noteID the
// server creates a note; otherwise that note is updated.
func (c *Client) CreateOrUpdate(ctx context.Context, name, content, noteID string) (*Note, error) {
	req := UpsertNoteRequest{
		ID:      noteID,
		Name:    name,
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
	}
	var resp Note
	if err := c.post(ctx, "/api/notes", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetAll(ctx context.Context) ([]Note, error) {
	var resp []Note
	if err := c.get(ctx, "/api/notes", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetByID returns nil, nil when the note does not exist.
func (c *Client) GetByID(ctx context.Context, id string) (*Note, error) {
	var resp Note
	err := c.get(ctx, "/api/notes?id="+url.QueryEscape(id), &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := resp.Decode(); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Search(ctx context.Context, term string) ([]Note, error) {
	var resp []Note
	if err := c.get(ctx, "/api/notes?search="+url.QueryEscape(term), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// HTTP helpers

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, jsonBody, result)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, result interface{}) error {
	cfg := c.settings()
	if !cfg.Configured() {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set(APIKeyHeader, cfg.Key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp ErrorResponse
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(data, &errResp) == nil {
			if errResp.Error != "" {
				msg = errResp.Error
			} else if errResp.Message != "" {
				msg = errResp.Message
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
