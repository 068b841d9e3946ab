// Package vectorstore is the on-disk, per-workspace vector database: one
// row per chunk, one shared embedding dimension per store, atomic-by-path
// replace semantics, and cosine-similarity top-k search.
//
// It is backed by SQLite, selected at build time between
// github.com/mattn/go-sqlite3 (cgo) and modernc.org/sqlite (purego).
// Similarity scoring is computed in Go over deserialized float32 blobs
// rather than through a native vector index extension.
package vectorstore
