//go:build cgo_sqlite
// +build cgo_sqlite

package store

// Compiled when building with CGO and the cgo_sqlite tag:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// Uses the C SQLite driver for faster scans over large indices.
// Driver: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration.
	BuildMode = "cgo"
)
