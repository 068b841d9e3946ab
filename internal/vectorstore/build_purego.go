//go:build !sqlite_vec

package vectorstore

// This file is compiled by default, without CGO.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// driverName is the SQLite driver registered under this build.
	driverName = "sqlite"

	// buildMode describes the current build configuration. The status RPC
	// method does not report it.
	buildMode = "purego"
)
