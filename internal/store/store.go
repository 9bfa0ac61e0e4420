// Package store owns the canonical on-disk database: projects, threads,
// nodes, the code index, the delta queue, and Oracle conversations. All
// writes are transactional; commit on success, rollback and surface a
// StoreError otherwise.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"vlt/internal/logging"

	_ "modernc.org/sqlite"
)

// Store is the typed persistence layer over SQLite with FTS5.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	log *zap.Logger
}

// Open initializes the database at path, creating directories and running
// migrations as needed. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, storeErr("open", fmt.Errorf("create directory: %w", err))
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, storeErr("open", err)
	}
	// A single connection keeps the in-memory database coherent and
	// serialises the write path per process.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: logging.Named("store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on success and rolling
// back otherwise.
func (s *Store) withTx(op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return storeErr(op, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warn("rollback failed", zap.String("op", op), zap.Error(rbErr))
		}
		return storeErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr(op, err)
	}
	return nil
}
