//go:build !sqlite_vec

package store

// Default builds use the pure-Go driver; vector similarity is computed
// in-process over embedding blobs.
const driverName = "sqlite"
