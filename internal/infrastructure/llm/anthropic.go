// Package llm is the language-model provider used for event extraction. No
// structured-output mode is assumed; callers parse the returned text
// defensively.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"marketintel/internal/ports"
)

// Options configures the client.
type Options struct {
	Endpoint  string
	Model     string
	APIKey    string
	MaxTokens int
}

// Client posts a single-user-message prompt and returns the model's text.
type Client struct {
	opts Options
	http *http.Client
}

var _ ports.CompletionClient = (*Client)(nil)

// NewClient builds a client; client may be nil.
func NewClient(opts Options, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 8000
	}
	return &Client{opts: opts, http: client}
}

// transientError marks failures worth retrying: timeouts, connection
// failures, 5xx and 429 responses.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends the prompt as one user message and returns the first text
// block of the response.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.opts.APIKey == "" {
		return "", fmt.Errorf("extraction API key is not configured")
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.opts.Model,
		MaxTokens: c.opts.MaxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal messages payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-api-key", c.opts.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isNetworkTransient(err) {
			return "", &transientError{err: fmt.Errorf("send prompt: %w", err)}
		}
		return "", fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &transientError{err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return "", &transientError{err: fmt.Errorf("model error %s: %s", resp.Status, trimBody(raw))}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model error %s: %s", resp.Status, trimBody(raw))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("empty model response")
	}
	return strings.TrimSpace(parsed.Content[0].Text), nil
}

func isNetworkTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded)
}

func trimBody(raw []byte) string {
	return strings.TrimSpace(string(raw[:min(len(raw), 512)]))
}
