// Package watcher recursively watches a workspace tree with fsnotify and
// emits debounced file-change Events to a bounded channel.
//
// Events are pushed onto a bounded, drop-oldest-per-path channel rather
// than invoked as a callback, so a consumer can apply its own backpressure
// and run index work on its own worker pool instead of inline on the watch
// goroutine. Create, write, and remove collapse into a single three-kind
// Kind enum.
package watcher
