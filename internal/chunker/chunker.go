package chunker

import (
	"strings"

	"github.com/dshills/void-indexd/internal/chunk"
)

// windowSize is the fallback fixed-size window, in lines.
const windowSize = 50

// Strategy extracts language-specific chunks from already-split source
// lines. It never sees I/O: the caller has already read the file.
type Strategy interface {
	// Extract returns chunks in source order, or nil if it found none.
	Extract(path, language string, lines []string) []chunk.Record
}

var strategies = map[string]Strategy{
	"go": goASTStrategy{},
}

var fallbackStrategy = regexStrategy{}

// Chunk splits source into an ordered, non-overlapping list of chunks.
// language is a short identifier such as "go", "python", or the bare file
// extension when the language is unknown. Chunk is total: it returns an
// empty slice only when source is empty or whitespace-only.
func Chunk(path, language, source string) []chunk.Record {
	if strings.TrimSpace(source) == "" {
		return nil
	}

	path = chunk.NormalizePath(path)
	lines := splitLines(source)

	var records []chunk.Record
	if strat, ok := strategies[language]; ok {
		records = strat.Extract(path, language, lines)
	}
	if len(records) == 0 {
		records = fallbackStrategy.Extract(path, language, lines)
	}
	if len(records) == 0 {
		records = fixedWindows(path, lines)
	}
	return records
}

// splitLines splits source into lines without the trailing newline,
// preserving a final non-newline-terminated line.
func splitLines(source string) []string {
	lines := strings.Split(source, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" && strings.HasSuffix(source, "\n") {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// fixedWindows covers the file with non-overlapping 50-line windows,
// skipping windows whose content is entirely whitespace.
func fixedWindows(path string, lines []string) []chunk.Record {
	var records []chunk.Record
	for start := 0; start < len(lines); start += windowSize {
		end := start + windowSize
		if end > len(lines) {
			end = len(lines)
		}
		content := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}
		records = append(records, chunk.Record{
			Path:      path,
			Content:   content,
			StartLine: start + 1,
			EndLine:   end,
			ChunkType: chunk.CodeBlock,
		})
	}
	return records
}
