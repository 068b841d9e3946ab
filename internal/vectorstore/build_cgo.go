//go:build sqlite_vec

package vectorstore

// This file is compiled when building with CGO and the sqlite_vec tag.
//
// Build command:
//   CGO_ENABLED=1 go build -tags sqlite_vec ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// driverName is the SQLite driver registered under this build.
	driverName = "sqlite3"

	// buildMode describes the current build configuration. The status RPC
	// method does not report it.
	buildMode = "cgo"
)
