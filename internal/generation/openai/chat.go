package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	"docqa/internal/openaicompat"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// Config configures the chat completions client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client answers prompts through an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	api         *openaicompat.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewClient creates a chat client. A key is mandatory only for the hosted API.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	api, err := openaicompat.New(openaicompat.Config{
		BaseURL:    cfg.BaseURL,
		APIKeyEnv:  cfg.APIKeyEnv,
		Timeout:    cfg.Timeout,
		RequireKey: cfg.BaseURL == "" || cfg.BaseURL == openaicompat.DefaultBaseURL,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Client{api: api, model: cfg.Model, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens}, nil
}

// Name returns the identifier of this generator implementation.
func (c *Client) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends prompt as a single user message and returns the first choice.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	var resp chatResponse
	if err := c.api.PostJSON(ctx, "chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
