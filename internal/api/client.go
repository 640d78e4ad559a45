package api

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

	"caseflow/internal/workflow"
)

const defaultClientTimeout = 30 * time.Second

// Client talks to a running caseflow daemon over its HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption customizes client construction.
type ClientOption func(*Client)

// WithClientHTTP overrides the underlying HTTP client.
func WithClientHTTP(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient builds a daemon API client. The address may be a bare host:port
// or a full URL; an empty token disables authentication headers.
func NewClient(address, token string, opts ...ClientOption) (*Client, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, fmt.Errorf("api client: address is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("api client: parse address: %w", err)
	}
	client := &Client{
		baseURL:    strings.TrimRight(parsed.String(), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// StatusError carries a non-2xx daemon response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("daemon returned status %d", e.Code)
	}
	return e.Message
}

// Is maps HTTP statuses onto the workflow sentinel errors so callers can use
// errors.Is without inspecting codes.
func (e *StatusError) Is(target error) bool {
	switch target {
	case workflow.ErrNotFound:
		return e.Code == http.StatusNotFound
	case workflow.ErrAlreadyExists, workflow.ErrStaleState:
		return e.Code == http.StatusConflict
	}
	return false
}

// Status fetches the engine status.
func (c *Client) Status(ctx context.Context) (EngineStatus, error) {
	var status EngineStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

// Submit starts a workflow for a benefit application.
func (c *Client) Submit(ctx context.Context, applicationID string, form json.RawMessage) (InstanceView, error) {
	req := SubmitApplicationRequest{ApplicationID: applicationID, Form: form}
	var resp ApplicationResponse
	if err := c.do(ctx, http.MethodPost, "/api/applications", req, &resp); err != nil {
		return InstanceView{}, err
	}
	return resp.Instance, nil
}

// Report fetches progress for an instance or application id.
func (c *Client) Report(ctx context.Context, id string) (InstanceView, error) {
	var resp ApplicationResponse
	if err := c.do(ctx, http.MethodGet, "/api/applications/"+url.PathEscape(id), nil, &resp); err != nil {
		return InstanceView{}, err
	}
	return resp.Instance, nil
}

// List fetches instances, optionally filtered by status.
func (c *Client) List(ctx context.Context, statuses ...string) ([]InstanceView, error) {
	path := "/api/applications"
	if len(statuses) > 0 {
		query := url.Values{}
		for _, status := range statuses {
			query.Add("status", status)
		}
		path += "?" + query.Encode()
	}
	var resp ApplicationListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Instances, nil
}

// Cancel requests cancellation for an instance or application id.
func (c *Client) Cancel(ctx context.Context, id string) (InstanceView, error) {
	var resp ApplicationResponse
	if err := c.do(ctx, http.MethodPost, "/api/applications/"+url.PathEscape(id)+"/cancel", nil, &resp); err != nil {
		return InstanceView{}, err
	}
	return resp.Instance, nil
}

// Sweep triggers one maintenance pass on the daemon.
func (c *Client) Sweep(ctx context.Context) (SweepResponse, error) {
	var resp SweepResponse
	err := c.do(ctx, http.MethodPost, "/api/sweep", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Message: extractErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
