//go:build !cgo_sqlite
// +build !cgo_sqlite

package store

// Default build: pure Go SQLite, no C compiler required.
//
//	CGO_ENABLED=0 go build ./...
//
// Driver: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
