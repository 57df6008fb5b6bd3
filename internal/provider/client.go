// Package provider implements the outbound client for the external
// large-language-model endpoint.
//
// The client performs exactly one HTTP POST per call: a single-turn
// chat-completions request with fixed generation parameters supplied at
// construction. There is no retry, no backoff, and no streaming; a failed
// call is reported once and classified for the caller.
//
// Error classification:
//   - transport failure, timeout, or a non-2xx status -> ErrUnavailable
//   - a malformed response body                        -> ErrInternal
//   - a well-formed body with an unexpected shape      -> the deterministic
//     Fallback text and a nil error, so the caller always has something to
//     persist and display.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tbourn/go-relay-backend/internal/config"
)

// Fallback is returned when the provider reply parses but does not contain
// choices[0].message.content. It is deliberately a fixed string.
const Fallback = "No response extracted. Check model provider output structure."

var (
	// ErrUnavailable indicates the provider could not be reached or answered
	// with a non-success status. Not retried.
	ErrUnavailable = errors.New("model provider unavailable")

	// ErrInternal indicates an unexpected local failure while building the
	// request or decoding the reply.
	ErrInternal = errors.New("provider reply processing failed")
)

// chatMessage is one turn in the completions request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the minimal request shape for the chat-completions endpoint.
type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// chatResponse is the minimal response shape we consume.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client calls the configured chat-completions endpoint. It is safe for
// concurrent use.
type Client struct {
	endpoint    string
	apiKey      string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests use this, and it
// also allows instrumented transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New constructs a Client from the given provider configuration. The
// generation parameters (max tokens, temperature) are fixed for the lifetime
// of the client; per-request overrides are intentionally not supported.
func New(cfg config.ProviderConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete submits a single-turn request carrying prompt and returns the
// first completion's text content. See the package comment for the error
// contract; note that an unexpected-but-parseable reply yields Fallback
// rather than an error.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("%w: no endpoint configured", ErrUnavailable)
	}

	body, err := json.Marshal(chatRequest{
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrInternal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		// Covers DNS/connect failures and the client timeout.
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		// Drain a little for the error message, never the whole body.
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, res.StatusCode, snippet)
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrInternal, err)
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrInternal, err)
	}
	if len(payload.Choices) == 0 || payload.Choices[0].Message.Content == "" {
		return Fallback, nil
	}
	return payload.Choices[0].Message.Content, nil
}
