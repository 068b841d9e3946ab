package chunker

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/dshills/void-indexd/internal/chunk"
)

// goASTStrategy extracts chunks from Go source using go/parser: function
// and method declarations become their own chunk, and each type spec in a
// declaration (including a grouped "type ( ... )" block) becomes its own
// class or interface chunk.
type goASTStrategy struct{}

func (goASTStrategy) Extract(path, _ string, lines []string) []chunk.Record {
	source := strings.Join(lines, "\n")
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, source, parser.SkipObjectResolution)
	if err != nil && file == nil {
		// Unparseable even partially: let the caller fall back.
		return nil
	}

	var records []chunk.Record
	ast.Inspect(file, func(n ast.Node) bool {
		switch decl := n.(type) {
		case *ast.FuncDecl:
			rec := extractRange(fset, lines, path, decl.Pos(), decl.End(), funcChunkType(decl))
			if rec != nil {
				records = append(records, *rec)
			}
			return false
		case *ast.GenDecl:
			if decl.Tok != token.TYPE {
				return true
			}
			for _, spec := range decl.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				rec := extractRange(fset, lines, path, ts.Pos(), ts.End(), typeChunkType(ts))
				if rec != nil {
					records = append(records, *rec)
				}
			}
			return false
		}
		return true
	})

	return records
}

func funcChunkType(decl *ast.FuncDecl) chunk.Type {
	if decl.Recv != nil && len(decl.Recv.List) > 0 {
		return chunk.Method
	}
	return chunk.Function
}

func typeChunkType(ts *ast.TypeSpec) chunk.Type {
	if _, ok := ts.Type.(*ast.InterfaceType); ok {
		return chunk.Interface
	}
	return chunk.Class
}

// extractRange builds a chunk record for the source lines spanning
// [start, end], trimming a record that would be empty or out of bounds.
func extractRange(fset *token.FileSet, lines []string, path string, start, end token.Pos, t chunk.Type) *chunk.Record {
	startLine := fset.Position(start).Line
	endLine := fset.Position(end).Line
	if startLine <= 0 || endLine <= 0 || startLine > len(lines) {
		return nil
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	content := strings.Join(lines[startLine-1:endLine], "\n")
	if strings.TrimSpace(content) == "" {
		return nil
	}
	return &chunk.Record{
		Path:      path,
		Content:   content,
		StartLine: startLine,
		EndLine:   endLine,
		ChunkType: t,
	}
}
