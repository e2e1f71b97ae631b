package plume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the Plume server (e.g. "http://localhost:8080").
	BaseURL string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	// Ignored when HTTPClient is set.
	Timeout time.Duration
}

// Client is an HTTP client for the Plume setup API. The setup endpoints
// are unauthenticated (they only exist before a server is installed), so
// no credentials are required. All methods are safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("plume: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
	}, nil
}

// Status returns the current installation state. Read-only; safe to poll.
func (c *Client) Status(ctx context.Context) (*InstallStatus, error) {
	var status InstallStatus
	if err := c.get(ctx, "/install/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// TestDatabase validates and connection-tests a database configuration
// without persisting it.
func (c *Client) TestDatabase(ctx context.Context, cfg DatabaseConfig) error {
	return c.post(ctx, "/install/database/test", cfg, nil)
}

// SaveDatabaseConfig validates, connection-tests, and persists the
// database configuration.
func (c *Client) SaveDatabaseConfig(ctx context.Context, cfg DatabaseConfig) error {
	return c.post(ctx, "/install/database/config", cfg, nil)
}

// InitializeDatabase creates the schema and seeds reference data.
// Idempotent: an already-initialized database reports
// InitResult.AlreadyInitialized instead of failing.
func (c *Client) InitializeDatabase(ctx context.Context) (*InitResult, error) {
	var result InitResult
	if err := c.post(ctx, "/install/database/init", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RepairDatabase drops and recreates the schema, recovering from
// partially-initialized state. Destructive: existing data is lost.
func (c *Client) RepairDatabase(ctx context.Context) (*InitResult, error) {
	var result InitResult
	if err := c.post(ctx, "/install/database/repair", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateAdmin creates the first administrator account.
func (c *Client) CreateAdmin(ctx context.Context, req CreateAdminRequest) (*AdminCredentials, error) {
	var creds AdminCredentials
	if err := c.post(ctx, "/install/admin", req, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Complete finalizes the installation. After this the server considers
// itself installed and the setup endpoints reject further changes.
func (c *Client) Complete(ctx context.Context, req CompleteRequest) error {
	return c.post(ctx, "/install/complete", req, nil)
}

// ReloadConfig asks the server to validate the on-disk configuration and
// schedule a restart if changes are pending.
func (c *Client) ReloadConfig(ctx context.Context) error {
	return c.post(ctx, "/install/config/reload", nil, nil)
}

// Health returns the server's health probe.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/healthz", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("plume: marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("plume: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("plume: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("plume: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("plume: read response body: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		if resp.StatusCode >= 400 {
			return &Error{
				StatusCode: resp.StatusCode,
				Code:       http.StatusText(resp.StatusCode),
				Message:    string(bodyBytes),
			}
		}
		return fmt.Errorf("plume: decode response envelope: %w", err)
	}

	if resp.StatusCode >= 400 || !envelope.Success {
		return &Error{
			StatusCode: resp.StatusCode,
			Code:       envelope.Code,
			Message:    envelope.Message,
		}
	}

	if dest == nil || envelope.Data == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, dest)
}
