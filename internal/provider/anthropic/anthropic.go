// Package anthropic bridges braid to the Anthropic Messages API for
// conversational completions, including extended-thinking requests.
package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/braid-ai/braid/internal/provider"
)

// Interface guard.
var _ provider.Provider = (*Client)(nil)

// Client implements provider.Provider using the Anthropic Messages API.
type Client struct {
	config Config
	client *sdkanthropic.Client
	logger *slog.Logger
}

// New creates a Client from the given config. The API key is resolved from
// the config first, then from the ANTHROPIC_API_KEY environment variable.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg.defaults()

	apiKey := cfg.APIKey
	if apiKey == "" {
		if envKey, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
			apiKey = envKey
		}
	}
	if apiKey == "" {
		return nil, errors.New("anthropic: no API key configured")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// The invocation layer owns retries; disable the SDK's.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := sdkanthropic.NewClient(opts...)
	return &Client{
		config: cfg,
		client: &client,
		logger: logger,
	}, nil
}

// Complete sends a synchronous completion request to the Messages API.
func (c *Client) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	params, err := convertRequest(req, &c.config)
	if err != nil {
		return provider.Response{}, err
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return provider.Response{}, mapError(err)
	}

	return convertResponse(msg)
}

// ModelName implements provider.Provider.
func (c *Client) ModelName() string {
	return c.config.Model
}
