// Package completion talks to OpenAI-compatible chat completion APIs.
// A Client performs exactly one request per Complete call; retry policy
// belongs to the caller. Every failure is classified into an apierr sentinel
// from the HTTP status and provider error code, never from message text.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-docpipe/internal/apierr"
)

// Default request limits.
const (
	DefaultMaxOutputTokens = 4096
)

// ErrEmptyResponse indicates the API answered without any choice.
var ErrEmptyResponse = errors.New("no response from API")

// ErrEmptyAPIKey indicates that the API key was not provided.
var ErrEmptyAPIKey = errors.New("API key is required")

// Request is one completion call: a system instruction applied to user content.
type Request struct {
	Model           string
	Instruction     string
	Content         string
	MaxOutputTokens int
}

// Completer sends a single completion request and returns the generated text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// chatCompleter is an internal interface for OpenAI chat completion.
// *openai.Client implements this implicitly.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Compile-time interface compliance check.
var _ Completer = (*Client)(nil)

// Client implements Completer on top of go-openai.
type Client struct {
	client      chatCompleter
	provider    Provider
	model       string
	temperature float32
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the default model, used when a Request leaves Model empty.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature sets the sampling temperature (0 is deterministic).
func WithTemperature(t float32) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// withChatCompleter sets a custom chat completer (for testing).
func withChatCompleter(cc chatCompleter) Option {
	return func(c *Client) {
		c.client = cc
	}
}

// New creates a Client for provider. baseURL overrides the provider endpoint
// when non-empty (proxies, tests).
func New(provider Provider, apiKey, baseURL string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", provider.OrDefault(), ErrEmptyAPIKey)
	}
	provider = provider.OrDefault()

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = provider.BaseURL()
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	c := &Client{
		client:   openai.NewClientWithConfig(cfg),
		provider: provider,
		model:    provider.DefaultModel(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Provider returns the provider the client talks to.
func (c *Client) Provider() Provider {
	return c.provider
}

// Model returns the client's default model.
func (c *Client) Model() string {
	return c.model
}

// Complete sends req and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxOut := req.MaxOutputTokens
	if maxOut <= 0 {
		maxOut = DefaultMaxOutputTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.Instruction},
			{Role: openai.ChatMessageRoleUser, Content: req.Content},
		},
	}
	// OpenAI reasoning models reject max_tokens; DeepSeek only knows max_tokens.
	if c.provider == OpenAI {
		chatReq.MaxCompletionTokens = maxOut
	} else {
		chatReq.MaxTokens = maxOut
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", c.provider, ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// Provider error codes that change the classification of a status.
const (
	codeInsufficientQuota = "insufficient_quota"
	codeRateLimitExceeded = "rate_limit_exceeded"
)

// classifyError maps go-openai errors to apierr sentinels.
// Uses errors.As for robust error type checking instead of string matching.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if sentinel := sentinelFor(apiErr.HTTPStatusCode, errorCode(apiErr)); sentinel != nil {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
		return err
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if sentinel := sentinelFor(reqErr.HTTPStatusCode, ""); sentinel != nil {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}

	return err
}

// errorCode extracts the provider's machine-readable error code.
// The code field is a string for OpenAI and DeepSeek but may be numeric elsewhere.
func errorCode(e *openai.APIError) string {
	if s, ok := e.Code.(string); ok && s != "" {
		return s
	}
	return e.Type
}

// sentinelFor returns the sentinel for an HTTP status and error code, or nil
// when the failure is not classifiable.
func sentinelFor(status int, code string) error {
	switch status {
	case http.StatusTooManyRequests:
		// 429 carries both temporary throttling and exhausted billing quota.
		if code == codeInsufficientQuota {
			return apierr.ErrQuotaExceeded
		}
		return apierr.ErrRateLimit
	case http.StatusPaymentRequired:
		return apierr.ErrQuotaExceeded
	case http.StatusUnauthorized:
		return apierr.ErrAuthFailed
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return apierr.ErrTimeout
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return apierr.ErrServer
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
		if code == codeRateLimitExceeded {
			return apierr.ErrRateLimit
		}
		return apierr.ErrBadRequest
	}
	return nil
}
