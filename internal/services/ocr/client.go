// Package ocr wraps the external text extraction service behind a small
// HTTP client with outcome-aware error classification.
package ocr

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
	"time"

	"caseflow/internal/services"
)

const (
	extractPath        = "/v1/extract"
	defaultHTTPTimeout = 30 * time.Second
)

// Client calls the OCR extraction endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the OCR client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient constructs an OCR service client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(
			services.ErrConfiguration, "ocr", "client setup",
			"ocr base url required", nil)
	}
	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type extractRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type extractResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Extract submits a document and returns the recognized text. Documents the
// service cannot read yield an unreadable-input error; infrastructure
// failures are transient and worth retrying.
func (c *Client) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", services.Wrap(
			services.ErrValidation, "ocr", "extract",
			fmt.Sprintf("document %s is empty", filename), nil)
	}

	payload, err := json.Marshal(extractRequest{
		Filename: filename,
		Content:  base64.StdEncoding.EncodeToString(content),
	})
	if err != nil {
		return "", fmt.Errorf("ocr extract: encode request: %w", err)
	}

	endpoint, err := url.JoinPath(c.baseURL, extractPath)
	if err != nil {
		return "", fmt.Errorf("ocr extract: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ocr extract: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return "", services.Wrap(marker, "ocr", "extract", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "ocr", "extract", "read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return "", services.Wrap(
			services.ErrUnreadable, "ocr", "extract",
			fmt.Sprintf("document %s is not machine readable", filename),
			errors.New(extractErrorDetail(body)))
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", services.Wrap(
			services.ErrTransient, "ocr", "extract",
			fmt.Sprintf("http %d", resp.StatusCode),
			errors.New(extractErrorDetail(body)))
	case resp.StatusCode >= http.StatusBadRequest:
		return "", services.Wrap(
			services.ErrValidation, "ocr", "extract",
			fmt.Sprintf("http %d", resp.StatusCode),
			errors.New(extractErrorDetail(body)))
	}

	var decoded extractResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrTransient, "ocr", "extract", "decode response", err)
	}
	text := strings.TrimSpace(decoded.Text)
	if text == "" {
		return "", services.Wrap(
			services.ErrUnreadable, "ocr", "extract",
			fmt.Sprintf("no text recognized in %s", filename), nil)
	}
	return text, nil
}

// Check probes service reachability for health reporting.
func (c *Client) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("ocr health: http %d", resp.StatusCode)
	}
	return nil
}

func extractErrorDetail(body []byte) string {
	var decoded extractResponse
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error != "" {
		return decoded.Error
	}
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		return "no detail"
	}
	return detail
}
