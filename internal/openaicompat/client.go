// Package openaicompat is a small JSON client for OpenAI-compatible HTTP APIs
// (OpenAI, Ollama, vLLM and similar), with retries on throttling and server errors.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 30 * time.Second
	defaultRetries = 5
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Timeout   time.Duration
	// MaxRetries bounds the attempts after the first; negative disables retries.
	MaxRetries int
	// RequireKey fails construction when the key env var is empty. Local
	// servers such as Ollama accept unauthenticated requests.
	RequireKey bool
}

// Client posts JSON to an OpenAI-compatible endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a client from cfg.
func New(cfg Config) (*Client, error) {
	key := ""
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" && cfg.RequireKey {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	t := cfg.Timeout
	if t == 0 {
		t = DefaultTimeout
	}
	retries := cfg.MaxRetries
	switch {
	case retries == 0:
		retries = defaultRetries
	case retries < 0:
		retries = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     key,
		client:     &http.Client{Timeout: t},
		maxRetries: retries,
		sleep:      sleepCtx,
	}, nil
}

// StatusError is returned when the server answers with a non-retryable status
// or keeps failing after all retries.
type StatusError struct {
	Status string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return e.Status
	}
	return e.Status + ": " + e.Body
}

// PostJSON sends body to path and decodes the response into out. Throttling
// (429), server errors, transport errors and undecodable bodies are retried
// with exponential backoff, honouring Retry-After.
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, retryDelay(attempt-1, lastErr)); err != nil {
				return err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &retryAfterError{
				StatusError: StatusError{Status: resp.Status, Code: resp.StatusCode, Body: snippet(payload)},
				after:       parseRetryAfter(resp.Header.Get("Retry-After")),
			}
			continue
		}
		if resp.StatusCode >= 300 {
			return &StatusError{Status: resp.Status, Code: resp.StatusCode, Body: snippet(payload)}
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			lastErr = fmt.Errorf("decode response: %w", err)
			continue
		}
		return nil
	}
	if ra, ok := lastErr.(*retryAfterError); ok {
		return &ra.StatusError
	}
	return lastErr
}

type retryAfterError struct {
	StatusError
	after time.Duration
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func retryDelay(attempt int, lastErr error) time.Duration {
	if ra, ok := lastErr.(*retryAfterError); ok && ra.after > 0 {
		return ra.after
	}
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
