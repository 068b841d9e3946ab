// Package chunker cuts source files into syntactically meaningful chunks.
//
// Chunk extraction is expressed as one capability, Strategy, with two
// implementations: a Go-AST-based strategy for .go files and a regex-based
// strategy for everything else. The exported Chunk function is the single
// entry point the rest of the daemon depends on; it is pure (no I/O, no
// errors) and total — it falls back to fixed-size windows when a strategy
// finds nothing, and returns an empty slice only for empty or
// whitespace-only input.
package chunker
