package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/void-indexd/internal/chunk"
	"github.com/dshills/void-indexd/internal/chunker"
	"github.com/dshills/void-indexd/internal/config"
	"github.com/dshills/void-indexd/internal/embedder"
	"github.com/dshills/void-indexd/internal/pathlock"
	"github.com/dshills/void-indexd/internal/vectorstore"
	"github.com/dshills/void-indexd/internal/watcher"
)

const embedderConcurrency = 8

const (
	stateUnready int32 = iota
	stateReady
	stateDraining
)

// Coordinator is the daemon's single process-wide state holder. One
// Coordinator exists per daemon process.
type Coordinator struct {
	log *zap.Logger

	state atomic.Int32

	mu          sync.Mutex
	cfg         config.Config
	client      *embedder.Client
	store       *vectorstore.Store
	watch       *watcher.Watcher
	watchCancel context.CancelFunc

	locks *pathlock.Map
	sem   *semaphore.Weighted
}

// New returns an unready Coordinator. log may be nil.
func New(log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		log:   log,
		locks: pathlock.New(),
		sem:   semaphore.NewWeighted(embedderConcurrency),
	}
}

// Status reports the daemon's current config and store stats, for the
// supplemental status method.
type Status struct {
	WorkspacePath string `json:"workspacePath"`
	DBPath        string `json:"dbPath"`
	Rows          int    `json:"rows"`
	Paths         int    `json:"paths"`
	Dimension     int    `json:"dimension"`
}

// Initialize sets the daemon's configuration the first time it is called,
// optionally starting the file watcher. A later call with identical
// effective parameters is a no-op success; one with different parameters
// fails with ErrAlreadyInitialized.
func (c *Coordinator) Initialize(ctx context.Context, params config.Params) error {
	if c.state.Load() == stateDraining {
		return ErrShuttingDown
	}

	newCfg := config.New(params)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Load() == stateReady {
		if c.cfg.Equal(newCfg) {
			return nil
		}
		return ErrAlreadyInitialized
	}

	c.cfg = newCfg
	c.client = embedder.New(newCfg.EmbedderURL, newCfg.EmbedderModel, c.log)

	if newCfg.WorkspacePath != "" {
		watchCtx, cancel := context.WithCancel(context.Background())
		w := watcher.New(newCfg.WorkspacePath, watcher.WithLogger(c.log))
		if err := w.Start(watchCtx); err != nil {
			cancel()
			c.log.Warn("failed to start file watcher", zap.String("workspace", newCfg.WorkspacePath), zap.Error(err))
		} else {
			c.watch = w
			c.watchCancel = cancel
			go c.consumeWatcherEvents(w)
		}
	}

	c.state.Store(stateReady)
	return nil
}

// consumeWatcherEvents drives IndexFile/DeleteFile from watcher events. The
// watcher never calls back into the coordinator directly; the coordinator
// is the one side holding a reference, pulling events off a channel it
// owns no other handle to.
func (c *Coordinator) consumeWatcherEvents(w *watcher.Watcher) {
	for ev := range w.Events() {
		var err error
		switch ev.Kind {
		case watcher.Deleted:
			_, err = c.DeleteFile(context.Background(), ev.Path)
		default:
			_, err = c.IndexFile(context.Background(), ev.Path)
		}
		if err != nil {
			c.log.Warn("watcher-triggered reindex failed",
				zap.String("path", ev.Path), zap.String("kind", ev.Kind.String()), zap.Error(err))
		}
	}
}

func (c *Coordinator) ready() error {
	switch c.state.Load() {
	case stateReady:
		return nil
	case stateDraining:
		return ErrShuttingDown
	default:
		return ErrUninitialized
	}
}

// resolvePaths returns the workspace-relative storage key and the absolute
// on-disk path for a caller-supplied path, which may be given as either.
func (c *Coordinator) resolvePaths(p string) (rel, abs string) {
	c.mu.Lock()
	workspace := c.cfg.WorkspacePath
	c.mu.Unlock()

	if filepath.IsAbs(p) {
		abs = p
		if r, err := filepath.Rel(workspace, p); err == nil && !strings.HasPrefix(r, "..") {
			rel = chunk.NormalizePath(r)
			return rel, abs
		}
		return chunk.NormalizePath(p), abs
	}
	rel = chunk.NormalizePath(p)
	abs = filepath.Join(workspace, p)
	return rel, abs
}

// IndexFile reads path from disk, chunks it, embeds each chunk, and
// replaces its rows in the store. It returns the number of chunks indexed.
func (c *Coordinator) IndexFile(ctx context.Context, path string) (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}

	rel, abs := c.resolvePaths(path)
	release := c.locks.Lock(rel)
	defer release()

	content, err := os.ReadFile(abs)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrFileRead, abs, err)
	}

	lang := config.Language(rel)
	records := chunker.Chunk(rel, lang, string(content))
	return c.embedAndStore(ctx, rel, records)
}

// IndexChunks embeds the given pre-cut chunks and replaces path's rows in
// the store. It returns the number of chunks indexed.
func (c *Coordinator) IndexChunks(ctx context.Context, path string, records []chunk.Record) (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}

	rel, _ := c.resolvePaths(path)
	release := c.locks.Lock(rel)
	defer release()

	return c.embedAndStore(ctx, rel, records)
}

func (c *Coordinator) embedAndStore(ctx context.Context, path string, records []chunk.Record) (int, error) {
	embedded := make([]chunk.Embedded, len(records))

	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			if err := c.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer c.sem.Release(1)

			vec, err := c.client.Embed(gctx, rec.Content)
			if err != nil {
				return err
			}
			embedded[i] = chunk.Embedded{Record: rec, Vector: vec}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	store, err := c.ensureStore(ctx)
	if err != nil {
		return 0, err
	}
	if err := store.UpsertFile(ctx, path, embedded); err != nil {
		return 0, err
	}
	return len(embedded), nil
}

// DeleteFile removes all rows stored for path. A path with no stored rows
// is not an error.
func (c *Coordinator) DeleteFile(ctx context.Context, path string) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}

	rel, _ := c.resolvePaths(path)
	release := c.locks.Lock(rel)
	defer release()

	store, err := c.ensureStore(ctx)
	if err != nil {
		return false, err
	}
	if err := store.DeleteFile(ctx, rel); err != nil {
		return false, err
	}
	return true, nil
}

const (
	defaultSearchLimit = 10
	minSearchLimit     = 1
	maxSearchLimit     = 100
)

// Search embeds query and returns up to limit nearest chunks, highest
// score first. limit is clamped to [1, 100] and defaults to 10.
func (c *Coordinator) Search(ctx context.Context, query string, limit int) ([]chunk.Result, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit < minSearchLimit {
		limit = minSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	vec, err := c.client.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	store, err := c.ensureStore(ctx)
	if err != nil {
		return nil, err
	}
	return store.Search(ctx, vec, limit)
}

// Status reports workspace, store path, and row/dimension counts.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	if err := c.ready(); err != nil {
		return Status{}, err
	}

	c.mu.Lock()
	cfg := c.cfg
	store := c.store
	c.mu.Unlock()

	st := Status{WorkspacePath: cfg.WorkspacePath, DBPath: cfg.DBPath}
	if store == nil {
		return st, nil
	}
	rows, paths, dim, err := store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	st.Rows, st.Paths, st.Dimension = rows, paths, dim
	return st, nil
}

// ensureStore opens the vector store on first use so a daemon that never
// indexes or searches anything never touches disk for it.
func (c *Coordinator) ensureStore(ctx context.Context) (*vectorstore.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		return c.store, nil
	}

	if err := os.MkdirAll(filepath.Dir(c.cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create db directory: %w", vectorstore.ErrOpen, err)
	}

	store, err := vectorstore.Open(ctx, c.cfg.DBPath, c.client.Dimension())
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

// Shutdown stops the watcher, closes the embedder's connection pool and the
// store, and marks the daemon as draining so subsequent requests fail with
// ErrShuttingDown. It is safe to call once; a second call returns
// ErrShuttingDown.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if c.state.Swap(stateDraining) == stateDraining {
		return ErrShuttingDown
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watch != nil {
		c.watch.Stop()
	}
	if c.watchCancel != nil {
		c.watchCancel()
	}
	if c.client != nil {
		c.client.Close()
	}
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}
