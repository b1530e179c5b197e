//go:build cgo

package session

import (
	_ "github.com/mattn/go-sqlite3"
)

// driverName selects mattn/go-sqlite3 when cgo is available, matching
// internal/memory/backend/sqlitevec's default driver choice for
// environments that can build it.
const driverName = "sqlite3"
