package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sentinel errors carrying the error taxonomy kind. Wrap with fmt.Errorf
// or errors.Is to classify a failure at the bridge edge.
var (
	ErrTransport    = errors.New("embedder: transport error")
	ErrHTTPStatus   = errors.New("embedder: unexpected http status")
	ErrDecode       = errors.New("embedder: decode error")
	ErrDimMismatch  = errors.New("embedder: dimension mismatch")
	unknownDimension int64 = 0
)

const (
	requestTimeout = 30 * time.Second
	retryDelay     = 250 * time.Millisecond
)

// Client is a stateless (beyond the learned dimension and its HTTP
// connection pool) embedding client, safe for concurrent use by many
// goroutines.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	dimension  atomic.Int64
	log        *zap.Logger
}

// New creates a Client targeting baseURL with the given model name.
func New(baseURL, model string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		log: log,
	}
}

// Dimension returns the learned embedding dimension, or 0 if no call has
// yet succeeded.
func (c *Client) Dimension() int {
	return int(c.dimension.Load())
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding vector for text, retrying once on connect
// failure or 5xx. A successful response whose length differs from a
// previously learned dimension fails with ErrDimMismatch.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := c.embedWithRetry(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.checkDimension(len(vector)); err != nil {
		return nil, err
	}

	return vector, nil
}

func (c *Client) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	vector, retryable, err := c.callOnce(ctx, text)
	if err == nil {
		return vector, nil
	}
	if !retryable {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryDelay):
	}

	vector, _, err = c.callOnce(ctx, text)
	return vector, err
}

// callOnce performs one HTTP round trip. retryable indicates whether the
// failure is a connect error or 5xx, the two cases embedWithRetry will
// retry once after a fixed delay.
func (c *Client) callOnce(ctx context.Context, text string) (vector []float32, retryable bool, err error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("embed transport error", zap.Error(err))
		return nil, true, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("%w: status %d", ErrHTTPStatus, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, false, fmt.Errorf("%w: status %d", ErrHTTPStatus, resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	vec := make([]float32, len(parsed.Embedding))
	for i, v := range parsed.Embedding {
		vec[i] = float32(v)
	}
	return vec, false, nil
}

// checkDimension enforces the write-once dimension invariant.
func (c *Client) checkDimension(got int) error {
	for {
		cur := c.dimension.Load()
		if cur == unknownDimension {
			if c.dimension.CompareAndSwap(unknownDimension, int64(got)) {
				return nil
			}
			continue // lost the race; re-check against whatever was set
		}
		if int(cur) != got {
			return fmt.Errorf("%w: learned dimension %d, got %d", ErrDimMismatch, cur, got)
		}
		return nil
	}
}

// Close releases the client's idle HTTP connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
