//go:build !purego
// +build !purego

package sqlite

// Default build: cgo SQLite, sharing one database file with the
// sqlite-vec store.
//
//   go build ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the SQLite driver to use.
const DriverName = "sqlite3"
