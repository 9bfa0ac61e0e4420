//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	_ "github.com/mattn/go-sqlite3"
)

// With the sqlite_vec tag the cgo driver is used and the sqlite-vec
// extension is auto-loaded, so similarity scans can run inside SQLite.
const driverName = "sqlite3"

func init() {
	vec.Auto()
}
