package openaicompat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string) (*Client, *[]time.Duration) {
	t.Helper()
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	c, err := New(Config{BaseURL: url + "/", APIKeyEnv: "TEST_OPENAI_KEY", MaxRetries: 3})
	require.NoError(t, err)
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestNew_RequireKey(t *testing.T) {
	t.Setenv("EMPTY_KEY", "")
	_, err := New(Config{APIKeyEnv: "EMPTY_KEY", RequireKey: true})
	assert.Error(t, err)

	c, err := New(Config{APIKeyEnv: "EMPTY_KEY"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, defaultRetries, c.maxRetries)
}

func TestPostJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv.URL+"/v1")

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.PostJSON(context.Background(), "/embeddings", map[string]string{"input": "x"}, &out))
	assert.True(t, out.OK)
}

func TestPostJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()
	c, slept := newTestClient(t, srv.URL)

	require.NoError(t, c.PostJSON(context.Background(), "chat/completions", struct{}{}, nil))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 400 * time.Millisecond}, *slept)
}

func TestPostJSON_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv.URL)

	err := c.PostJSON(context.Background(), "embeddings", struct{}{}, nil)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Contains(t, se.Error(), "overloaded")
	assert.Equal(t, int32(4), calls.Load())
}

func TestPostJSON_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad model"}`, http.StatusBadRequest)
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv.URL)

	err := c.PostJSON(context.Background(), "embeddings", struct{}{}, nil)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostJSON_CancelledWhileWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := c.PostJSON(ctx, "embeddings", struct{}{}, nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(0, nil))
	assert.Equal(t, 800*time.Millisecond, retryDelay(2, nil))
	assert.Equal(t, 5*time.Second, retryDelay(10, nil))
}
