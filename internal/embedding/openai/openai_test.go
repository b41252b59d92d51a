package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler func(req map[string]any) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write([]byte(handler(req)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed_OpenAIShape(t *testing.T) {
	srv := newServer(t, func(req map[string]any) string {
		assert.Equal(t, "text-embedding-3-small", req["model"])
		assert.Equal(t, "room rent", req["input"])
		return `{"data":[{"embedding":[0.1,0.2,0.3]}]}`
	})
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "UNSET_TEST_KEY"})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Dimension())

	v, err := c.Embed(context.Background(), "room rent")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, "openai", c.Name())
}

func TestEmbed_OllamaShape(t *testing.T) {
	srv := newServer(t, func(req map[string]any) string {
		assert.Equal(t, "nomic-embed-text", req["model"])
		assert.Equal(t, "hello", req["prompt"])
		return `{"embedding":[1,0]}`
	})
	c, err := NewClient(Config{BaseURL: srv.URL, Model: "nomic-embed-text"})
	require.NoError(t, err)

	v, err := c.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	srv := newServer(t, func(map[string]any) string { return `{"embedding":[1,0]}` })
	c, err := NewClient(Config{BaseURL: srv.URL, Dimension: 3})
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "x")

	assert.ErrorContains(t, err, "expected 3")
}

func TestEmbed_EmptyResponse(t *testing.T) {
	srv := newServer(t, func(map[string]any) string { return `{"data":[]}` })
	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "x")

	assert.ErrorContains(t, err, "no embedding returned")
}

func TestNewClient_HostedAPIRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
