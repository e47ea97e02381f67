package embedding

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

// Default settings for the OpenAI-compatible embeddings endpoint.
const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "text-embedding-ada-002"
	defaultTimeout = 15 * time.Second
)

// OpenAIConfig holds the configuration for the OpenAI-compatible client.
// Any service implementing the /v1/embeddings interface works via base_url.
type OpenAIConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// defaults fills in zero-value fields with sensible defaults.
func (c *OpenAIConfig) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// OpenAI is an Embedder backed by an OpenAI-compatible embeddings API.
type OpenAI struct {
	config OpenAIConfig
	client *http.Client
}

// Interface guard.
var _ Embedder = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI-compatible embedding client.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	cfg.defaults()
	return &OpenAI{
		config: cfg,
		// Response-header timeout instead of a global client timeout;
		// per-request context handles cancellation.
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.Timeout,
			},
		},
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Embed returns the embedding vector for the given text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	body, err := json.Marshal(embeddingRequest{
		Model: o.config.Model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	url := strings.TrimRight(o.config.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: response carried no embedding", ErrUnavailable)
	}

	return parsed.Data[0].Embedding, nil
}

// errorFromResponse maps a non-200 embeddings response to an error,
// preserving the service's message when the body parses.
func errorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != nil {
		return fmt.Errorf("%w: HTTP %d: %s", ErrUnavailable, resp.StatusCode, parsed.Error.Message)
	}
	return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
}
