package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pdf-rag-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyClient struct {
	calls    int
	failures int
	vec      []float32
}

func (f *flakyClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("upstream unavailable")
	}
	return f.vec, nil
}

func testCfg() config.EmbeddingConfig {
	return config.EmbeddingConfig{MaxRetries: 3, RetryBaseDelayMS: 1}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	inner := &flakyClient{failures: 2, vec: []float32{0.1, 0.2}}
	c := newRetryingClient(inner, testCfg())

	vec, err := c.CreateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryExhaustionReturnsEmbeddingError(t *testing.T) {
	inner := &flakyClient{failures: 10}
	c := newRetryingClient(inner, testCfg())

	_, err := c.CreateEmbedding(context.Background(), "hello")
	require.Error(t, err)

	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, 3, embErr.Attempts)
	// 总共恰好 3 次尝试，调用方不再叠加重试
	assert.Equal(t, 3, inner.calls)
}

func TestRetryNoCaching(t *testing.T) {
	inner := &flakyClient{vec: []float32{1}}
	c := newRetryingClient(inner, testCfg())

	_, err := c.CreateEmbedding(context.Background(), "same text")
	require.NoError(t, err)
	_, err = c.CreateEmbedding(context.Background(), "same text")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestHTTPClientParsesEmbedding(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"some text"}, req.Input)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": []float32{0.5, -0.25}}},
		})
	}))
	defer srv.Close()

	c := NewClient(config.EmbeddingConfig{
		BaseURL:          srv.URL,
		APIKey:           "test-key",
		Model:            "text-embedding-3-large",
		MaxRetries:       3,
		RetryBaseDelayMS: 1,
	})

	vec, err := c.CreateEmbedding(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25}, vec)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestHTTPClientNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(config.EmbeddingConfig{BaseURL: srv.URL, MaxRetries: 2, RetryBaseDelayMS: 1})
	_, err := c.CreateEmbedding(context.Background(), "x")
	require.Error(t, err)
	var embErr *EmbeddingError
	assert.ErrorAs(t, err, &embErr)
}
