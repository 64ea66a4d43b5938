package enrich

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

// Wire formats understood by Client
const (
	FormatOllama = "ollama"
	FormatOpenAI = "openai"
)

const (
	defaultTimeout     = 300 * time.Second
	defaultTemperature = 0.3
	defaultMaxTokens   = 8000
	maxErrorPreview    = 200
)

// HTTPClient defines the interface for HTTP operations
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ChatMessage represents a message in the chat API
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the OpenAI-compatible chat completions request body
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// ChatResponse is the OpenAI-compatible chat completions response
type ChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// GenerateRequest is the ollama /api/generate request body
type GenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

// GenerateOptions are the ollama sampling options we set
type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// GenerateResponse is the non-streaming ollama /api/generate response
type GenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Client talks to a local text-generation service. Every call is a single
// attempt.
type Client struct {
	baseURL     string
	model       string
	format      string
	apiKey      string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	httpClient  HTTPClient
}

// Option allows configuring the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithFormat sets the wire format ("ollama" or "openai")
func WithFormat(format string) Option {
	return func(c *Client) {
		if format != "" {
			c.format = strings.ToLower(format)
		}
	}
}

// WithAPIKey sets a bearer key for OpenAI-compatible servers
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout bounds each generation call. Ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a generation client for baseURL (scheme and host, e.g.
// http://localhost:11434) and model
func NewClient(baseURL, model string, opts ...Option) (*Client, error) {
	client := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		format:      FormatOllama,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		timeout:     defaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: client.timeout}
	}

	if client.baseURL == "" {
		return nil, fmt.Errorf("generation service URL is required")
	}
	if client.model == "" {
		return nil, fmt.Errorf("generation model is required")
	}
	if client.format != FormatOllama && client.format != FormatOpenAI {
		return nil, fmt.Errorf("unsupported generation API format %q", client.format)
	}

	return client, nil
}

// Model returns the configured model name
func (c *Client) Model() string { return c.model }

// Format returns the configured wire format
func (c *Client) Format() string { return c.format }

// Generate sends prompt to the service and returns the raw completion text
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var (
		endpoint string
		body     []byte
		err      error
	)

	if c.format == FormatOpenAI {
		endpoint = c.baseURL + "/v1/chat/completions"
		body, err = json.Marshal(ChatRequest{
			Model:       c.model,
			Messages:    []ChatMessage{{Role: "user", Content: prompt}},
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		})
	} else {
		endpoint = c.baseURL + "/api/generate"
		body, err = json.Marshal(GenerateRequest{
			Model:  c.model,
			Prompt: prompt,
			Options: GenerateOptions{
				Temperature: c.temperature,
				NumPredict:  c.maxTokens,
			},
		})
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}
	return c.extractContent(respBody)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.format == FormatOpenAI && c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// extractContent returns the completion text for either wire format
func (c *Client) extractContent(respBody []byte) (string, error) {
	if c.format == FormatOpenAI {
		var chatResp ChatResponse
		if err := json.Unmarshal(respBody, &chatResp); err != nil {
			return "", fmt.Errorf("unexpected response (not JSON): %s", preview(respBody))
		}
		if chatResp.Error != nil {
			return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
		}
		if len(chatResp.Choices) == 0 {
			return "", fmt.Errorf("no choices in response")
		}
		return chatResp.Choices[0].Message.Content, nil
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("unexpected response (not JSON): %s", preview(respBody))
	}
	if genResp.Error != "" {
		return "", fmt.Errorf("API error: %s", genResp.Error)
	}
	return genResp.Response, nil
}

// Models lists the models the service offers: /api/tags for ollama,
// /v1/models for OpenAI-compatible servers
func (c *Client) Models(ctx context.Context) ([]string, error) {
	endpoint := c.baseURL + "/api/tags"
	if c.format == FormatOpenAI {
		endpoint = c.baseURL + "/v1/models"
	}

	respBody, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unexpected response (not JSON): %s", preview(respBody))
	}

	names := make([]string, 0, len(parsed.Models)+len(parsed.Data))
	for _, m := range parsed.Models {
		names = append(names, m.Name)
	}
	for _, m := range parsed.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

// HasModel reports whether model is among names. A bare name matches its
// ":latest" tag and vice versa.
func HasModel(names []string, model string) bool {
	base := strings.TrimSuffix(model, ":latest")
	for _, n := range names {
		if n == model || strings.TrimSuffix(n, ":latest") == base {
			return true
		}
	}
	return false
}

// parseAPIError extracts a human-readable message from an API error response.
// Both {"error":{"message":...}} and ollama's {"error":"..."} are understood.
func parseAPIError(statusCode int, body []byte) error {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		return fmt.Errorf("API error (status %d): %s", statusCode, nested.Error.Message)
	}
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		return fmt.Errorf("API error (status %d): %s", statusCode, flat.Error)
	}
	return fmt.Errorf("API error (status %d): %s", statusCode, preview(body))
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorPreview {
		s = s[:maxErrorPreview] + "..."
	}
	return s
}
