//go:build !cgo

package session

import (
	_ "modernc.org/sqlite"
)

// driverName falls back to the pure-Go modernc.org/sqlite driver when
// cgo is unavailable (cross-compiled binaries, CGO_ENABLED=0 builds),
// grounded on the teacher's own sqlitevec backend which registers this
// same pure-Go driver for its vector storage.
const driverName = "sqlite"
