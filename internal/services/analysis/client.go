// Package analysis wraps the chat-completions model that cross-checks
// extracted document text against the declared application form.
package analysis

import (
	"bytes"
	"context"
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
	defaultBaseURL     = "https://openrouter.ai/api/v1"
	defaultModel       = "google/gemini-3-flash-preview"
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 60 * time.Second
)

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option customizes the analysis client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithModel overrides the default model identifier.
func WithModel(model string) Option {
	return func(c *Client) {
		model = strings.TrimSpace(model)
		if model != "" {
			c.model = model
		}
	}
}

// NewClient constructs an analysis API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Findings captures the JSON payload returned by the model.
type Findings struct {
	VerifiedMonthlyIncome float64 `json:"verified_monthly_income"`
	IncomeMatchesDeclared bool    `json:"income_matches_declared"`
	Confidence            float64 `json:"confidence"`
	Summary               string  `json:"summary"`
	Raw                   string  `json:"-"`
}

// Input bundles what the model sees for one application.
type Input struct {
	ApplicantName         string
	DeclaredMonthlyIncome float64
	Dependents            int
	DocumentText          string
}

// Analyze asks the model to verify the declared income against the document
// text and returns its structured findings.
func (c *Client) Analyze(ctx context.Context, input Input) (Findings, error) {
	var empty Findings
	if strings.TrimSpace(c.apiKey) == "" {
		return empty, services.Wrap(
			services.ErrConfiguration, "analysis", "analyze",
			"api key required", nil)
	}
	if strings.TrimSpace(input.DocumentText) == "" {
		return empty, services.Wrap(
			services.ErrValidation, "analysis", "analyze",
			"document text required", nil)
	}

	encoded, err := json.Marshal(buildChatRequest(c.model, input))
	if err != nil {
		return empty, fmt.Errorf("analysis: encode request: %w", err)
	}
	endpoint, err := url.JoinPath(c.baseURL, "/chat/completions")
	if err != nil {
		return empty, fmt.Errorf("analysis: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("analysis: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return empty, services.Wrap(marker, "analysis", "analyze", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, "analysis", "analyze", "read body", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return empty, services.Wrap(
			services.ErrConfiguration, "analysis", "analyze",
			fmt.Sprintf("http %d: check api key", resp.StatusCode), nil)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return empty, services.Wrap(
			services.ErrTransient, "analysis", "analyze",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return empty, services.Wrap(services.ErrTransient, "analysis", "analyze", "decode response", err)
	}
	if completion.Error != nil {
		return empty, services.Wrap(
			services.ErrTransient, "analysis", "analyze",
			"api error: "+strings.TrimSpace(completion.Error.Message), nil)
	}
	if len(completion.Choices) == 0 {
		return empty, services.Wrap(services.ErrTransient, "analysis", "analyze", "empty choices", nil)
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return empty, services.Wrap(services.ErrTransient, "analysis", "analyze", "empty content", nil)
	}

	var parsed Findings
	parsed.Raw = content
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return empty, services.Wrap(services.ErrTransient, "analysis", "analyze", "parse payload", err)
	}
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}
	parsed.Summary = strings.TrimSpace(parsed.Summary)
	return parsed, nil
}

// Ready reports whether the client is configured for live calls.
func (c *Client) Ready() bool {
	return strings.TrimSpace(c.apiKey) != ""
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func buildChatRequest(model string, input Input) chatCompletionRequest {
	user := fmt.Sprintf(
		"Declared applicant: %s\nDeclared monthly income: %.2f\nDependents: %d\n\nDocument text:\n%s",
		input.ApplicantName, input.DeclaredMonthlyIncome, input.Dependents, input.DocumentText,
	)
	return chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: IncomeVerificationPrompt},
			{Role: "user", Content: user},
		},
		Temperature: 0,
		ResponseFormat: map[string]string{
			"type": jsonResponseType,
		},
	}
}
