// Package embedder is a stateless HTTP client for a localhost embedding
// service (Ollama-compatible /api/embeddings endpoint).
//
// The client learns the embedding dimension from its first successful
// response and holds it in a write-once atomic cell; every subsequent
// response is checked against it and a mismatch fails loudly rather than
// silently truncating or padding vectors.
package embedder
