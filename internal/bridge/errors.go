package bridge

import (
	"errors"

	"github.com/dshills/void-indexd/internal/coordinator"
	"github.com/dshills/void-indexd/internal/embedder"
	"github.com/dshills/void-indexd/internal/vectorstore"
)

// Kind is the error taxonomy label carried in error.data.kind.
type Kind string

const (
	KindUnInitialized      Kind = "UnInitialized"
	KindAlreadyInitialized Kind = "AlreadyInitialized"
	KindShuttingDown       Kind = "ShuttingDown"
	KindInvalidParams      Kind = "InvalidParams"
	KindFileRead           Kind = "FileRead"
	KindEmbedTransport     Kind = "EmbedTransport"
	KindEmbedHTTPStatus    Kind = "EmbedHttpStatus"
	KindEmbedDecode        Kind = "EmbedDecode"
	KindEmbedDimMismatch   Kind = "EmbedDimMismatch"
	KindStoreOpen          Kind = "StoreOpen"
	KindStoreWrite         Kind = "StoreWrite"
	KindStoreRead          Kind = "StoreRead"
	KindInternal           Kind = "Internal"
)

// classify maps a component error to the RPC error code and taxonomy kind
// that represent it.
func classify(err error) (code int, kind Kind, message string) {
	switch {
	case errors.Is(err, coordinator.ErrUninitialized):
		return codeInternal, KindUnInitialized, err.Error()
	case errors.Is(err, coordinator.ErrAlreadyInitialized):
		return codeInternal, KindAlreadyInitialized, err.Error()
	case errors.Is(err, coordinator.ErrShuttingDown):
		return codeInternal, KindShuttingDown, err.Error()
	case errors.Is(err, coordinator.ErrFileRead):
		return codeInternal, KindFileRead, err.Error()
	case errors.Is(err, embedder.ErrDimMismatch):
		return codeInternal, KindEmbedDimMismatch, err.Error()
	case errors.Is(err, embedder.ErrHTTPStatus):
		return codeInternal, KindEmbedHTTPStatus, err.Error()
	case errors.Is(err, embedder.ErrDecode):
		return codeInternal, KindEmbedDecode, err.Error()
	case errors.Is(err, embedder.ErrTransport):
		return codeInternal, KindEmbedTransport, err.Error()
	case errors.Is(err, vectorstore.ErrOpen):
		return codeInternal, KindStoreOpen, err.Error()
	case errors.Is(err, vectorstore.ErrWrite), errors.Is(err, vectorstore.ErrDimension):
		return codeInternal, KindStoreWrite, err.Error()
	case errors.Is(err, vectorstore.ErrRead):
		return codeInternal, KindStoreRead, err.Error()
	default:
		return codeInternal, KindInternal, err.Error()
	}
}
