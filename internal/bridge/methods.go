package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dshills/void-indexd/internal/chunk"
	"github.com/dshills/void-indexd/internal/config"
)

func invalidParams(id json.RawMessage, reason string) Response {
	return errorResponse(id, codeInvalidParams, reason, KindInvalidParams)
}

type initializeParams struct {
	WorkspacePath string `json:"workspacePath"`
	OllamaURL     string `json:"ollamaUrl"`
	OllamaModel   string `json:"ollamaModel"`
	DBPath        string `json:"dbPath"`
}

func (b *Bridge) handleInitialize(ctx context.Context, id json.RawMessage, raw json.RawMessage) Response {
	var p initializeParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return invalidParams(id, "initialize: params must be an object")
		}
	}
	if p.WorkspacePath == "" {
		return invalidParams(id, "initialize: workspacePath is required")
	}

	err := b.coord.Initialize(ctx, config.Params{
		WorkspacePath: p.WorkspacePath,
		EmbedderURL:   p.OllamaURL,
		EmbedderModel: p.OllamaModel,
		DBPath:        p.DBPath,
	})
	if err != nil {
		code, kind, msg := classify(err)
		return errorResponse(id, code, msg, kind)
	}
	return resultResponse(id, map[string]string{"status": "initialized"})
}

type chunkParam struct {
	Content   string `json:"content"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	ChunkType string `json:"chunkType"`
}

type indexChunksParams struct {
	Path   string       `json:"path"`
	Chunks []chunkParam `json:"chunks"`
}

func (b *Bridge) handleIndexChunks(ctx context.Context, id json.RawMessage, raw json.RawMessage) Response {
	var p indexChunksParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return invalidParams(id, "indexChunks: params must be an object")
	}
	if p.Path == "" {
		return invalidParams(id, "indexChunks: path is required")
	}

	records := make([]chunk.Record, 0, len(p.Chunks))
	for i, c := range p.Chunks {
		rec := chunk.Record{
			Path:      p.Path,
			Content:   c.Content,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			ChunkType: chunk.Type(c.ChunkType),
		}
		if err := rec.Validate(); err != nil {
			return invalidParams(id, fmt.Sprintf("indexChunks: chunks[%d]: %s", i, err))
		}
		records = append(records, rec)
	}

	n, err := b.coord.IndexChunks(ctx, p.Path, records)
	if err != nil {
		code, kind, msg := classify(err)
		return errorResponse(id, code, msg, kind)
	}
	return resultResponse(id, map[string]int{"indexed": n})
}

type pathParams struct {
	Path string `json:"path"`
}

func (b *Bridge) handleIndexFile(ctx context.Context, id json.RawMessage, raw json.RawMessage) Response {
	var p pathParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return invalidParams(id, "indexFile: params must be an object")
	}
	if p.Path == "" {
		return invalidParams(id, "indexFile: path is required")
	}

	n, err := b.coord.IndexFile(ctx, p.Path)
	if err != nil {
		code, kind, msg := classify(err)
		return errorResponse(id, code, msg, kind)
	}
	return resultResponse(id, map[string]int{"indexed": n})
}

func (b *Bridge) handleDeleteFile(ctx context.Context, id json.RawMessage, raw json.RawMessage) Response {
	var p pathParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return invalidParams(id, "deleteFile: params must be an object")
	}
	if p.Path == "" {
		return invalidParams(id, "deleteFile: path is required")
	}

	deleted, err := b.coord.DeleteFile(ctx, p.Path)
	if err != nil {
		code, kind, msg := classify(err)
		return errorResponse(id, code, msg, kind)
	}
	return resultResponse(id, map[string]bool{"deleted": deleted})
}

type searchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (b *Bridge) handleSearch(ctx context.Context, id json.RawMessage, raw json.RawMessage) Response {
	var p searchParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return invalidParams(id, "search: params must be an object")
	}
	if p.Query == "" {
		return invalidParams(id, "search: query is required")
	}

	results, err := b.coord.Search(ctx, p.Query, p.Limit)
	if err != nil {
		code, kind, msg := classify(err)
		return errorResponse(id, code, msg, kind)
	}

	chunks := make([]map[string]any, len(results))
	scores := make([]float64, len(results))
	for i, r := range results {
		chunks[i] = map[string]any{
			"path":      r.Path,
			"content":   r.Content,
			"startLine": r.StartLine,
			"endLine":   r.EndLine,
			"chunkType": string(r.ChunkType),
		}
		scores[i] = r.Score
	}
	return resultResponse(id, map[string]any{"chunks": chunks, "scores": scores})
}

// handleShutdown always succeeds from the caller's point of view; readLoop
// has already marked the bridge draining by the time this runs, and the
// coordinator and its store are only torn down once Serve has drained
// in-flight work.
func (b *Bridge) handleShutdown(_ context.Context, id json.RawMessage) Response {
	return resultResponse(id, map[string]bool{"ok": true})
}

func (b *Bridge) handleStatus(ctx context.Context, id json.RawMessage) Response {
	st, err := b.coord.Status(ctx)
	if err != nil {
		code, kind, msg := classify(err)
		return errorResponse(id, code, msg, kind)
	}
	return resultResponse(id, st)
}
