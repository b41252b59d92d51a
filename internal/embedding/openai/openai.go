package openai

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"docqa/internal/openaicompat"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-3-small"

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	api       *openaicompat.Client
	model     string
	dimension atomic.Int64
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	// Dimension is the expected vector size; zero learns it from the first response.
	Dimension int
}

// NewClient creates a new embeddings client using the provided configuration.
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
	c := &Client{api: api, model: cfg.Model}
	c.dimension.Store(int64(cfg.Dimension))
	return c, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the dimensionality of the produced embedding vectors.
// It is zero until configured or learned from the first response.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body := struct {
		Input  string `json:"input,omitempty"`
		Prompt string `json:"prompt,omitempty"`
		Model  string `json:"model"`
	}{Input: text, Prompt: text, Model: c.model}

	// OpenAI shape is {"data":[{"embedding":[...]}]}; Ollama-native is {"embedding":[...]}.
	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Embedding []float32 `json:"embedding"`
	}
	if err := c.api.PostJSON(ctx, "embeddings", body, &out); err != nil {
		return nil, err
	}

	v := out.Embedding
	if len(out.Data) > 0 && len(out.Data[0].Embedding) > 0 {
		v = out.Data[0].Embedding
	}
	if len(v) == 0 {
		return nil, errors.New("no embedding returned")
	}
	c.dimension.CompareAndSwap(0, int64(len(v)))
	if want := c.Dimension(); len(v) != want {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(v), want)
	}
	return v, nil
}
