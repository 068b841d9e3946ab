package embedder_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/void-indexd/internal/embedder"
)

func embedHandler(dim int, vary bool) http.HandlerFunc {
	var calls int64
	return func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&calls, 1)
		d := dim
		if vary && n > 1 {
			d = dim / 2
		}
		vec := make([]float64, d)
		for i := range vec {
			vec[i] = float64(i) / float64(d+1)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}
}

func TestEmbed_LearnsDimension(t *testing.T) {
	srv := httptest.NewServer(embedHandler(8, false))
	defer srv.Close()

	c := embedder.New(srv.URL, "test-model", nil)
	vec, err := c.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.Equal(t, 8, c.Dimension())

	vec2, err := c.Embed(context.Background(), "second text")
	require.NoError(t, err)
	assert.Len(t, vec2, 8)
}

func TestEmbed_DimensionMismatchFails(t *testing.T) {
	srv := httptest.NewServer(embedHandler(8, true))
	defer srv.Close()

	c := embedder.New(srv.URL, "test-model", nil)
	_, err := c.Embed(context.Background(), "first")
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "second, different text")
	require.Error(t, err)
	assert.ErrorIs(t, err, embedder.ErrDimMismatch)
}

func TestEmbed_RepeatedCallsAlwaysHitTheServer(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{1, 2, 3}})
	}))
	defer srv.Close()

	c := embedder.New(srv.URL, "test-model", nil)
	_, err := c.Embed(context.Background(), "same text")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestEmbed_HTTPErrorNotRetried(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := embedder.New(srv.URL, "test-model", nil)
	_, err := c.Embed(context.Background(), "bad request text")
	require.Error(t, err)
	assert.ErrorIs(t, err, embedder.ErrHTTPStatus)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestEmbed_ServerErrorRetriedOnce(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{1, 2}})
	}))
	defer srv.Close()

	c := embedder.New(srv.URL, "test-model", nil)
	vec, err := c.Embed(context.Background(), "retry me please")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}
