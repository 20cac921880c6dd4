// Package insights turns a finished report into written recommendations
// using a text-generation provider.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
	defaultClaudeModel  = "claude-sonnet-4-20250514"

	defaultOpenAIURL   = "https://api.openai.com"
	defaultOpenAIModel = "gpt-4o-mini"

	maxTokens = 2000
)

// Provider is a text-generation backend.
type Provider interface {
	// Name returns the provider name for display/logging.
	Name() string
	// Available reports whether the provider is configured.
	Available() bool
	// Complete sends a prompt with a system message and returns the reply.
	Complete(ctx context.Context, system, prompt string) (string, error)
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   90 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// ClaudeAPI calls the Anthropic messages API.
type ClaudeAPI struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewClaudeAPI creates a Claude provider. An empty model selects the default.
func NewClaudeAPI(apiKey, model string, hc *http.Client) *ClaudeAPI {
	if model == "" {
		model = defaultClaudeModel
	}
	if hc == nil {
		hc = defaultHTTPClient()
	}
	return &ClaudeAPI{apiKey: apiKey, model: model, endpoint: anthropicAPIURL, client: hc}
}

// Name implements Provider.
func (c *ClaudeAPI) Name() string { return "claude-api" }

// Model returns the configured model.
func (c *ClaudeAPI) Model() string { return c.model }

// Available implements Provider.
func (c *ClaudeAPI) Available() bool { return c.apiKey != "" }

type claudeRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements Provider.
func (c *ClaudeAPI) Complete(ctx context.Context, system, prompt string) (string, error) {
	payload := claudeRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}

	var resp claudeResponse
	if err := postJSON(ctx, c.client, c.endpoint, headers, payload, &resp); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// OpenAICompatible calls any chat-completions endpoint: OpenAI itself or a
// local llama-server.
type OpenAICompatible struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAICompatible creates a chat-completions provider. An empty baseURL
// targets OpenAI.
func NewOpenAICompatible(baseURL, apiKey, model string, hc *http.Client) *OpenAICompatible {
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if hc == nil {
		hc = defaultHTTPClient()
	}
	return &OpenAICompatible{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, model: model, client: hc}
}

// Name implements Provider.
func (o *OpenAICompatible) Name() string { return "openai" }

// Model returns the configured model.
func (o *OpenAICompatible) Model() string { return o.model }

// Available implements Provider. Local servers need no key, so a custom
// base URL is enough.
func (o *OpenAICompatible) Available() bool {
	return o.apiKey != "" || o.baseURL != defaultOpenAIURL
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Index   int         `json:"index"`
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements Provider.
func (o *OpenAICompatible) Complete(ctx context.Context, system, prompt string) (string, error) {
	payload := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   maxTokens,
	}
	headers := map[string]string{}
	if o.apiKey != "" {
		headers["Authorization"] = "Bearer " + o.apiKey
	}

	var resp chatResponse
	if err := postJSON(ctx, o.client, o.baseURL+"/v1/chat/completions", headers, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func postJSON(ctx context.Context, hc *http.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("API request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
