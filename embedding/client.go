package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Supported HTTP protocols.
const (
	ProtocolOllama = "ollama"
	ProtocolOpenAI = "openai"
)

// Client calls an embedding model server over HTTP.
type Client struct {
	protocol   string
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. Its transport is used as is.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAPIKey sets a bearer token for the openai protocol.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// NewClient returns a client for protocol ("ollama" or "openai").
func NewClient(protocol, baseURL, model string, opts ...ClientOption) (*Client, error) {
	switch protocol {
	case ProtocolOllama, ProtocolOpenAI:
	default:
		return nil, fmt.Errorf("unsupported embedding protocol %q", protocol)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("embedding URL is required")
	}

	c := &Client{
		protocol: protocol,
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    model,
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type ollamaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed implements Embedder.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vecs [][]float64
	switch c.protocol {
	case ProtocolOllama:
		var resp ollamaResponse
		if err := c.post(ctx, "/api/embed", ollamaRequest{Model: c.model, Input: texts}, &resp); err != nil {
			return nil, err
		}
		vecs = resp.Embeddings
	case ProtocolOpenAI:
		var resp openAIResponse
		if err := c.post(ctx, "/v1/embeddings", openAIRequest{Model: c.model, Input: texts}, &resp); err != nil {
			return nil, err
		}
		sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
		vecs = make([][]float64, len(resp.Data))
		for i, d := range resp.Data {
			vecs[i] = d.Embedding
		}
	}

	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%s returned %d vectors for %d texts: %w", c.protocol, len(vecs), len(texts), ErrCountMismatch)
	}
	return vecs, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("embedding request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode embedding response: %w", err)
	}
	return nil
}
