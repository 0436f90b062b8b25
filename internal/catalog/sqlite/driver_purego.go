//go:build purego
// +build purego

package sqlite

// Pure Go build for environments without a C toolchain; the catalog
// works unchanged, only the sqlite-vec store needs cgo.
//
//   CGO_ENABLED=0 go build -tags purego ./...

import (
	_ "modernc.org/sqlite"
)

// DriverName is the SQLite driver to use.
const DriverName = "sqlite"
