package chunker

import (
	"regexp"
	"strings"

	"github.com/dshills/void-indexd/internal/chunk"
)

// declPattern pairs a regex matching a declaration header with the chunk
// type it introduces. Patterns are tried in order; the first match wins.
type declPattern struct {
	re   *regexp.Regexp
	kind chunk.Type
}

// bracePatterns cover the brace-delimited languages in the eligible
// extension set (C family, Java/Kotlin/Scala/C#/Dart/Swift, JS/TS, Go,
// Rust, PHP).
var bracePatterns = []declPattern{
	{regexp.MustCompile(`^\s*(public|private|protected|internal|static|final|abstract|override|async|export|default)?\s*(interface|protocol)\s+\w`), chunk.Interface},
	{regexp.MustCompile(`^\s*(public|private|protected|internal|static|final|abstract|export|default|data)?\s*(class|struct|enum)\s+\w`), chunk.Class},
	{regexp.MustCompile(`^\s*(pub\s+)?(async\s+)?(fn|func|function)\s+\w`), chunk.Function},
	{regexp.MustCompile(`^\s*(public|private|protected|internal|static|final|abstract|override|async|export)+\s+[\w<>\[\],\s]+\s+\w+\s*\([^;]*$`), chunk.Method},
}

// indentPatterns cover indentation-based languages (Python, Ruby).
var indentPatterns = []declPattern{
	{regexp.MustCompile(`^\s*class\s+\w`), chunk.Class},
	{regexp.MustCompile(`^\s*module\s+\w`), chunk.Interface},
	{regexp.MustCompile(`^\s*(async\s+)?def\s+\w`), chunk.Function},
}

// shellPatterns cover sh/bash/zsh/fish function declarations.
var shellPatterns = []declPattern{
	{regexp.MustCompile(`^\s*(function\s+)?\w[\w-]*\s*\(\)\s*\{?\s*$`), chunk.Function},
}

var languagePatterns = map[string][]declPattern{
	"python":     indentPatterns,
	"ruby":       indentPatterns,
	"shell":      shellPatterns,
	"typescript": bracePatterns,
	"javascript": bracePatterns,
	"java":       bracePatterns,
	"c":          bracePatterns,
	"cpp":        bracePatterns,
	"rust":       bracePatterns,
	"php":        bracePatterns,
	"swift":      bracePatterns,
	"kotlin":     bracePatterns,
	"scala":      bracePatterns,
	"csharp":     bracePatterns,
	"dart":       bracePatterns,
}

// regexStrategy finds declaration headers by regex and extends each chunk
// to the matching closing brace (or, for indentation languages, to the
// first subsequent line at or below the header's indentation).
type regexStrategy struct{}

func (regexStrategy) Extract(path, language string, lines []string) []chunk.Record {
	if patterns, ok := languagePatterns[language]; ok {
		return extractWithPatterns(path, lines, patterns)
	}

	// Unknown language: try every known pattern family and keep whichever
	// finds the most chunks, since the extension-derived hint may not match
	// any family we know.
	var best []chunk.Record
	for _, patterns := range [][]declPattern{bracePatterns, indentPatterns, shellPatterns} {
		records := extractWithPatterns(path, lines, patterns)
		if len(records) > len(best) {
			best = records
		}
	}
	return best
}

func extractWithPatterns(path string, lines []string, patterns []declPattern) []chunk.Record {
	var records []chunk.Record
	used := make([]bool, len(lines))

	for i, line := range lines {
		if used[i] {
			continue
		}
		kind, ok := matchDecl(line, patterns)
		if !ok {
			continue
		}
		end := findBlockEnd(lines, i)
		content := strings.Join(lines[i:end+1], "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}
		for j := i; j <= end; j++ {
			used[j] = true
		}
		records = append(records, chunk.Record{
			Path:      path,
			Content:   content,
			StartLine: i + 1,
			EndLine:   end + 1,
			ChunkType: kind,
		})
	}
	return records
}

func matchDecl(line string, patterns []declPattern) (chunk.Type, bool) {
	for _, p := range patterns {
		if p.re.MatchString(line) {
			return p.kind, true
		}
	}
	return "", false
}

// findBlockEnd extends a declaration starting at index start to the end of
// its block: brace-balance for brace languages, or indentation for
// indentation languages (detected by the absence of braces on the header).
func findBlockEnd(lines []string, start int) int {
	header := lines[start]
	if strings.ContainsAny(header, "{") || blockUsesBraces(lines, start) {
		return findBraceEnd(lines, start)
	}
	return findIndentEnd(lines, start)
}

func blockUsesBraces(lines []string, start int) bool {
	for i := start; i < len(lines) && i < start+3; i++ {
		if strings.Contains(lines[i], "{") {
			return true
		}
		if strings.TrimSpace(lines[i]) != "" && i > start {
			return false
		}
	}
	return false
}

func findBraceEnd(lines []string, start int) int {
	depth := 0
	seenOpen := false
	for i := start; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				seenOpen = true
			case '}':
				depth--
			}
		}
		if seenOpen && depth <= 0 {
			return i
		}
	}
	return len(lines) - 1
}

func findIndentEnd(lines []string, start int) int {
	baseIndent := indentOf(lines[start])
	end := start
	for i := start + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			end = i
			continue
		}
		if indentOf(lines[i]) <= baseIndent {
			break
		}
		end = i
	}
	return end
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 8
		} else {
			break
		}
	}
	return n
}
