// Package bridge implements the daemon's line-delimited JSON request/
// response protocol over stdin/stdout: one reader goroutine parsing frames,
// a bounded worker pool processing them concurrently, and one writer
// goroutine serializing responses so framing is never interleaved.
//
// Each method extracts its parameters into a typed struct at the edge and
// rejects malformed input with a structured error before any inner
// component sees it.
package bridge
