// Package chunk defines the chunk record shared by the chunker, embedder,
// and vector store.
package chunk

import (
	"errors"
	"strings"
)

// Type is the open vocabulary of chunk kinds the chunker may emit.
type Type string

const (
	Function  Type = "function"
	Method    Type = "method"
	Class     Type = "class"
	Interface Type = "interface"
	CodeBlock Type = "code_block"
)

// Record is a contiguous slice of a source file plus its location and kind.
type Record struct {
	Path      string
	Content   string
	StartLine int
	EndLine   int
	ChunkType Type
}

// Validate checks the invariants spec'd for a chunk record.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return errors.New("chunk: content is empty")
	}
	if r.StartLine <= 0 || r.EndLine <= 0 {
		return errors.New("chunk: line numbers must be positive")
	}
	if r.StartLine > r.EndLine {
		return errors.New("chunk: start_line must be <= end_line")
	}
	return nil
}

// Embedded augments a Record with its vector and the store's opaque row id.
type Embedded struct {
	Record
	Vector []float32
	ID     string
}

// Result is a chunk record returned from a similarity search, with score.
type Result struct {
	Record
	Score float64
}

// NormalizePath converts backslash separators to forward slashes, the form
// the store and wire protocol expect. It does not make the path relative.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
