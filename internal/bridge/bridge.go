package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/void-indexd/internal/coordinator"
)

const (
	maxLineSize     = 32 << 20 // 32 MiB maximum length of a single request line
	requestDeadline = 60 * time.Second
	drainTimeout    = 5 * time.Second
)

// Bridge drives the daemon's stdin/stdout protocol against a Coordinator.
type Bridge struct {
	coord *coordinator.Coordinator
	log   *zap.Logger

	workers int

	// draining is set the instant readLoop parses a shutdown request, before
	// that request is even dispatched to the worker pool. Every line read
	// afterward is answered with ShuttingDown directly by readLoop instead of
	// being enqueued, so the drain window has no gap a racing request can
	// slip through.
	draining atomic.Bool
}

// New returns a Bridge with a worker pool sized max(4, 2*NumCPU) so request
// handling scales with available cores without spawning one goroutine per
// request.
func New(coord *coordinator.Coordinator, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	workers := 2 * runtime.NumCPU()
	if workers < 4 {
		workers = 4
	}
	return &Bridge{
		coord:   coord,
		log:     log,
		workers: workers,
	}
}

// Serve reads newline-delimited request frames from r, dispatches them to
// the worker pool, and writes response frames to w in the order workers
// finish them. It returns once r is exhausted or ctx is cancelled. Once a
// shutdown request has been read, Serve keeps draining the input so the
// scanning goroutine never blocks on a send nobody is reading, but every
// further request gets an immediate ShuttingDown response instead of being
// dispatched. Once intake stops, Serve waits up to drainTimeout for
// in-flight requests to finish before tearing down the coordinator, so a
// request already in progress gets a chance to complete against a still-open
// store rather than racing its own shutdown.
func (b *Bridge) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	jobs := make(chan Request, b.workers)
	responses := make(chan Response, b.workers)

	var workerWG sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			b.runWorker(ctx, jobs, responses)
		}()
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		b.runWriter(w, responses)
	}()

	lines := make(chan []byte)
	scanErrCh := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := append([]byte(nil), bytes.TrimSpace(scanner.Bytes())...)
			lines <- line
		}
		scanErrCh <- scanner.Err()
	}()

readLoop:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break readLoop
			}
			if len(line) == 0 {
				continue
			}
			var req Request
			if err := json.Unmarshal(line, &req); err != nil {
				responses <- errorResponse(json.RawMessage("null"), codeParseError, "parse error: "+err.Error(), "")
				continue
			}

			if b.draining.Load() {
				if !req.isNotification() {
					code, kind, msg := classify(coordinator.ErrShuttingDown)
					responses <- errorResponse(req.ID, code, msg, kind)
				}
				continue
			}
			if req.Method == "shutdown" {
				b.draining.Store(true)
			}

			select {
			case jobs <- req:
			case <-ctx.Done():
				break readLoop
			}
		case <-ctx.Done():
			break readLoop
		}
	}

	close(jobs)

	drained := make(chan struct{})
	go func() {
		workerWG.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		close(responses)
		<-writerDone
	case <-time.After(drainTimeout):
		b.log.Warn("worker pool did not drain within the timeout; shutting down without it")
		// Workers and the writer may still be running against jobs/responses;
		// leave both channels open rather than risk a send on a closed channel
		// from a straggler, and let process exit reclaim the goroutines.
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := b.coord.Shutdown(shutdownCtx); err != nil && !errors.Is(err, coordinator.ErrShuttingDown) {
		b.log.Warn("coordinator shutdown failed", zap.Error(err))
	}

	select {
	case err := <-scanErrCh:
		return err
	default:
		return nil
	}
}

func (b *Bridge) runWorker(ctx context.Context, jobs <-chan Request, responses chan<- Response) {
	for req := range jobs {
		resp := b.handle(ctx, req)
		if req.isNotification() {
			continue
		}
		responses <- resp
	}
}

func (b *Bridge) runWriter(w io.Writer, responses <-chan Response) {
	enc := json.NewEncoder(w)
	for resp := range responses {
		if err := enc.Encode(resp); err != nil {
			b.log.Error("failed to write response", zap.Error(err))
		}
	}
}

// handle dispatches one request to its method handler, enforcing the 60s
// overall request deadline and recovering from a panic in any handler so
// one bad request cannot take down the daemon.
func (b *Bridge) handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic handling request", zap.String("method", req.Method), zap.Any("recover", r))
			resp = errorResponse(req.ID, codeInternal, fmt.Sprintf("internal error: %v", r), KindInternal)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, requestDeadline)
	defer cancel()

	switch req.Method {
	case "initialize":
		return b.handleInitialize(ctx, req.ID, req.Params)
	case "indexChunks":
		return b.handleIndexChunks(ctx, req.ID, req.Params)
	case "indexFile":
		return b.handleIndexFile(ctx, req.ID, req.Params)
	case "deleteFile":
		return b.handleDeleteFile(ctx, req.ID, req.Params)
	case "search":
		return b.handleSearch(ctx, req.ID, req.Params)
	case "shutdown":
		return b.handleShutdown(ctx, req.ID)
	case "status":
		return b.handleStatus(ctx, req.ID)
	default:
		return errorResponse(req.ID, codeMethodNotFound, "unknown method: "+req.Method, "")
	}
}
