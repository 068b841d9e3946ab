package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dshills/void-indexd/internal/config"
)

const (
	debounceDelay = 500 * time.Millisecond
	queueCapacity = 1024
)

// Kind identifies what happened to a watched path.
type Kind int

const (
	Created Kind = iota
	Modified
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is a single, debounced filesystem change under eligible extensions.
type Event struct {
	Path string
	Kind Kind
}

// Watcher recursively watches root for eligible, non-excluded file changes
// and emits one debounced Event per settled change onto Events().
type Watcher struct {
	root string
	fsw  *fsnotify.Watcher
	log  *zap.Logger

	mu             sync.Mutex
	debounceTimers map[string]*time.Timer
	pendingKind    map[string]Kind
	queue          []Event
	queuedIdx      map[string]int
	signal         chan struct{}
	out            chan Event
	closed         chan struct{}
	closeOnce      sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger attaches a logger for watch errors and dropped-event warnings.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// New creates a Watcher rooted at root. Call Start to begin watching.
func New(root string, opts ...Option) *Watcher {
	w := &Watcher{
		root:           filepath.Clean(root),
		debounceTimers: make(map[string]*time.Timer),
		pendingKind:    make(map[string]Kind),
		queuedIdx:      make(map[string]int),
		signal:         make(chan struct{}, 1),
		out:            make(chan Event),
		closed:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Events returns the channel debounced changes are delivered on. It closes
// once Stop is called; events still queued at that point are not delivered.
func (w *Watcher) Events() <-chan Event {
	return w.out
}

// Start begins watching. It returns once the initial directory tree has
// been registered with fsnotify; watching continues in the background until
// ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}
	w.fsw = fsw

	if err := w.addTreeRecursive(w.root); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watcher: watch %s: %w", w.root, err)
	}

	go w.dispatch()
	go w.run(ctx)
	return nil
}

func (w *Watcher) addTreeRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && config.IsExcluded(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.closed:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if err != nil && w.log != nil {
				w.log.Warn("watch error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	if config.IsExcluded(ev.Name) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		info, err := os.Stat(ev.Name)
		if err == nil && info.IsDir() {
			if ev.Op&fsnotify.Create != 0 {
				w.handleNewDirectory(ev.Name)
			}
			return
		}
		if !config.IsEligibleExtension(ev.Name) {
			return
		}
		kind := Modified
		if ev.Op&fsnotify.Create != 0 {
			kind = Created
		}
		w.debounce(ev.Name, kind)
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if !config.IsEligibleExtension(ev.Name) {
			return
		}
		w.debounce(ev.Name, Deleted)
	}
}

func (w *Watcher) handleNewDirectory(dir string) {
	if err := w.addTreeRecursive(dir); err != nil && w.log != nil {
		w.log.Warn("failed to watch new directory", zap.String("path", dir), zap.Error(err))
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if config.IsExcluded(path) || !config.IsEligibleExtension(path) {
			return nil
		}
		w.debounce(path, Created)
		return nil
	})
}

// debounce coalesces rapid-fire events on the same path into a single Event
// fired debounceDelay after the last observed change, so a burst of saves
// or a find-and-replace across many lines produces one reindex, not one
// per write syscall. A file created and then written within the window is
// reported as Created.
func (w *Watcher) debounce(path string, kind Kind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if prev, ok := w.pendingKind[path]; ok && prev == Created && kind == Modified {
		kind = Created
	}
	w.pendingKind[path] = kind
	if t, ok := w.debounceTimers[path]; ok {
		t.Stop()
	}
	w.debounceTimers[path] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		settledKind := w.pendingKind[path]
		delete(w.pendingKind, path)
		delete(w.debounceTimers, path)
		w.mu.Unlock()
		w.enqueue(Event{Path: path, Kind: settledKind})
	})
}

// enqueue adds ev to the bounded delivery queue. A second event for a path
// already queued replaces it in place; once the queue is at capacity, the
// globally oldest entry is dropped to make room.
func (w *Watcher) enqueue(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if idx, ok := w.queuedIdx[ev.Path]; ok {
		w.queue[idx] = ev
		return
	}
	if len(w.queue) >= queueCapacity {
		dropped := w.queue[0]
		w.queue = w.queue[1:]
		delete(w.queuedIdx, dropped.Path)
		for p, i := range w.queuedIdx {
			w.queuedIdx[p] = i - 1
		}
		if w.log != nil {
			w.log.Warn("watch queue full, dropping oldest event", zap.String("path", dropped.Path))
		}
	}
	w.queue = append(w.queue, ev)
	w.queuedIdx[ev.Path] = len(w.queue) - 1

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *Watcher) dispatch() {
	defer close(w.out)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 {
			w.mu.Unlock()
			select {
			case <-w.signal:
			case <-w.closed:
				return
			}
			w.mu.Lock()
		}
		ev := w.queue[0]
		w.queue = w.queue[1:]
		delete(w.queuedIdx, ev.Path)
		for p, i := range w.queuedIdx {
			w.queuedIdx[p] = i - 1
		}
		w.mu.Unlock()

		select {
		case w.out <- ev:
		case <-w.closed:
			return
		}
	}
}

// Stop stops watching and closes Events() once the dispatcher notices.
func (w *Watcher) Stop() {
	w.closeOnce.Do(func() {
		if w.fsw != nil {
			_ = w.fsw.Close()
		}
		close(w.closed)
	})
}
