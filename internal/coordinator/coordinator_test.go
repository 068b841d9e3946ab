package coordinator_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/void-indexd/internal/chunk"
	"github.com/dshills/void-indexd/internal/config"
	"github.com/dshills/void-indexd/internal/coordinator"
	"github.com/dshills/void-indexd/internal/embedder"
)

const bagOfWordsDim = 16

var wordRE = regexp.MustCompile(`[a-zA-Z0-9]+`)

// bagOfWords is a fake embedding server producing a deterministic
// bag-of-words vector per request, so cosine similarity between two texts
// tracks shared vocabulary closely enough to exercise Search meaningfully
// without a real embedding model.
func bagOfWords(t *testing.T, dim int, varyAfter int) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	calls := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		var req struct{ Prompt string }
		_ = json.NewDecoder(r.Body).Decode(&req)

		d := dim
		if varyAfter > 0 && n > varyAfter {
			d = dim / 2
		}
		vec := make([]float64, d)
		for _, word := range wordRE.FindAllString(strings.ToLower(req.Prompt), -1) {
			idx := 0
			for _, b := range word {
				idx += int(b)
			}
			vec[idx%d]++
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
}

func newCoordinator(t *testing.T, embedURL string) *coordinator.Coordinator {
	t.Helper()
	c, _ := newCoordinatorWithWorkspace(t, embedURL)
	return c
}

func newCoordinatorWithWorkspace(t *testing.T, embedURL string) (*coordinator.Coordinator, string) {
	t.Helper()
	workspace := t.TempDir()
	c := coordinator.New(nil)
	ctx := context.Background()
	err := c.Initialize(ctx, config.Params{
		WorkspacePath: workspace,
		EmbedderURL:   embedURL,
		DBPath:        filepath.Join(t.TempDir(), "index.db"),
	})
	require.NoError(t, err)
	return c, workspace
}

func TestScenarioA_InitThenSearchEmpty(t *testing.T) {
	srv := bagOfWords(t, bagOfWordsDim, 0)
	defer srv.Close()

	c := newCoordinator(t, srv.URL)
	results, err := c.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScenarioB_IndexTwoChunksAndSearch(t *testing.T) {
	srv := bagOfWords(t, bagOfWordsDim, 0)
	defer srv.Close()

	c := newCoordinator(t, srv.URL)
	ctx := context.Background()

	n, err := c.IndexChunks(ctx, "a.py", []chunk.Record{
		{Path: "a.py", Content: "def f():\n    return 1", StartLine: 1, EndLine: 2, ChunkType: chunk.Function},
		{Path: "a.py", Content: "def g():\n    return 2", StartLine: 3, EndLine: 4, ChunkType: chunk.Function},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := c.Search(ctx, "return 1", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, strings.HasPrefix(results[0].Content, "def f"))
}

func TestScenarioC_ReplaceSemantics(t *testing.T) {
	srv := bagOfWords(t, bagOfWordsDim, 0)
	defer srv.Close()

	c := newCoordinator(t, srv.URL)
	ctx := context.Background()

	_, err := c.IndexChunks(ctx, "a.py", []chunk.Record{
		{Path: "a.py", Content: "def f():\n    return 1", StartLine: 1, EndLine: 2, ChunkType: chunk.Function},
		{Path: "a.py", Content: "def g():\n    return 2", StartLine: 3, EndLine: 4, ChunkType: chunk.Function},
	})
	require.NoError(t, err)

	n, err := c.IndexChunks(ctx, "a.py", []chunk.Record{
		{Path: "a.py", Content: "def h(): pass", StartLine: 1, EndLine: 1, ChunkType: chunk.Function},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := c.Search(ctx, "return 1", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotContains(t, r.Content, "def f")
		assert.NotContains(t, r.Content, "def g")
	}

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Rows)
}

func TestScenarioD_DeleteFile(t *testing.T) {
	srv := bagOfWords(t, bagOfWordsDim, 0)
	defer srv.Close()

	c := newCoordinator(t, srv.URL)
	ctx := context.Background()

	_, err := c.IndexChunks(ctx, "a.py", []chunk.Record{
		{Path: "a.py", Content: "def f():\n    return 1", StartLine: 1, EndLine: 2, ChunkType: chunk.Function},
	})
	require.NoError(t, err)

	deleted, err := c.DeleteFile(ctx, "a.py")
	require.NoError(t, err)
	assert.True(t, deleted)

	results, err := c.Search(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteFile_AbsolutePathMatchesKeyFromIndexFile(t *testing.T) {
	srv := bagOfWords(t, bagOfWordsDim, 0)
	defer srv.Close()

	c, workspace := newCoordinatorWithWorkspace(t, srv.URL)
	ctx := context.Background()

	abs := filepath.Join(workspace, "a.go")
	require.NoError(t, os.WriteFile(abs, []byte("package a\n\nfunc F() {}\n"), 0o644))

	n, err := c.IndexFile(ctx, abs)
	require.NoError(t, err)
	require.Positive(t, n)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, n, st.Rows)

	// Mirrors how the file watcher reports a deletion: always an absolute path.
	deleted, err := c.DeleteFile(ctx, abs)
	require.NoError(t, err)
	assert.True(t, deleted)

	st, err = c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Rows)
}

func TestScenarioE_DimensionLockFailsSecondIndex(t *testing.T) {
	srv := bagOfWords(t, bagOfWordsDim, 1)
	defer srv.Close()

	c := newCoordinator(t, srv.URL)
	ctx := context.Background()

	_, err := c.IndexChunks(ctx, "a.py", []chunk.Record{
		{Path: "a.py", Content: "def f():\n    return 1", StartLine: 1, EndLine: 2, ChunkType: chunk.Function},
	})
	require.NoError(t, err)

	_, err = c.IndexChunks(ctx, "b.py", []chunk.Record{
		{Path: "b.py", Content: "def h(): pass", StartLine: 1, EndLine: 1, ChunkType: chunk.Function},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, embedder.ErrDimMismatch)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Rows)
}

func TestInitialize_IdempotentWithSameParams(t *testing.T) {
	srv := bagOfWords(t, bagOfWordsDim, 0)
	defer srv.Close()

	c := coordinator.New(nil)
	params := config.Params{WorkspacePath: t.TempDir(), EmbedderURL: srv.URL}
	require.NoError(t, c.Initialize(context.Background(), params))
	require.NoError(t, c.Initialize(context.Background(), params))
}

func TestInitialize_DifferentParamsFail(t *testing.T) {
	srv := bagOfWords(t, bagOfWordsDim, 0)
	defer srv.Close()

	c := coordinator.New(nil)
	ctx := context.Background()
	require.NoError(t, c.Initialize(ctx, config.Params{WorkspacePath: t.TempDir(), EmbedderURL: srv.URL}))

	err := c.Initialize(ctx, config.Params{WorkspacePath: t.TempDir(), EmbedderURL: srv.URL})
	assert.ErrorIs(t, err, coordinator.ErrAlreadyInitialized)
}

func TestRequestsBeforeInitializeFailUninitialized(t *testing.T) {
	c := coordinator.New(nil)
	_, err := c.Search(context.Background(), "q", 1)
	assert.ErrorIs(t, err, coordinator.ErrUninitialized)
}

func TestShutdown_SecondCallFailsShuttingDown(t *testing.T) {
	srv := bagOfWords(t, bagOfWordsDim, 0)
	defer srv.Close()
	c := newCoordinator(t, srv.URL)

	require.NoError(t, c.Shutdown(context.Background()))
	err := c.Shutdown(context.Background())
	assert.ErrorIs(t, err, coordinator.ErrShuttingDown)
}

func TestConcurrentIndexingSerializesPerPath(t *testing.T) {
	srv := bagOfWords(t, bagOfWordsDim, 0)
	defer srv.Close()

	c := newCoordinator(t, srv.URL)
	ctx := context.Background()

	const concurrency = 4
	for round := 0; round < 50; round++ {
		var wg sync.WaitGroup
		errs := make([]error, concurrency)
		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := c.IndexChunks(ctx, "a.py", []chunk.Record{
					{
						Path:      "a.py",
						Content:   fmt.Sprintf("def round%d_writer%d(): pass", round, i),
						StartLine: 1,
						EndLine:   1,
						ChunkType: chunk.Function,
					},
				})
				errs[i] = err
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}

		st, err := c.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, st.Rows,
			"round %d: concurrent writers to the same path must never leave an interleaved mix of rows", round)
	}
}

func TestRequestsAfterShutdownFailShuttingDown(t *testing.T) {
	srv := bagOfWords(t, bagOfWordsDim, 0)
	defer srv.Close()
	c := newCoordinator(t, srv.URL)
	require.NoError(t, c.Shutdown(context.Background()))

	_, err := c.Search(context.Background(), "q", 1)
	assert.ErrorIs(t, err, coordinator.ErrShuttingDown)
}
