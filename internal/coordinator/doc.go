// Package coordinator owns the daemon's process-wide state: configuration,
// the vector store handle, the embedding client, the file watcher, and the
// per-path lock table. It composes chunker, embedder, and vectorstore into
// the indexFile/indexChunks/deleteFile/search operations the bridge calls.
//
// Chunk embedding fans out through an errgroup bounded by a semaphore on
// outbound embedding requests, independent of the worker pool in
// internal/bridge that dispatches RPC methods. The watcher is wired in
// without a back-pointer: the coordinator is the only side that holds a
// reference to the other, reading watcher.Event values off a channel and
// calling its own IndexFile/DeleteFile methods in response.
package coordinator
