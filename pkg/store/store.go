// Package store implements the persistent topology store on an embedded
// SQLite database. A successful mutation is durable before the call
// returns; all reads see committed state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/netval-app/netval/pkg/util"
)

// Store wraps the embedded database. Writers are serialized per project
// to avoid lost updates during canvas editing bursts; readers are not
// blocked by the project locks.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open opens (creating if necessary) the database at path and applies the
// schema. WAL journaling, enforced foreign keys and NORMAL synchronous
// mode are set through the DSN.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, util.NewStorageError("open", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_synchronous=NORMAL&_busy_timeout=30000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, util.NewStorageError("open", err)
	}
	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY churn between our own writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, locks: make(map[string]*sync.Mutex)}
	if err := s.applySchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenInMemory opens a private in-memory database, used by tests.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		return nil, util.NewStorageError("open", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, locks: make(map[string]*sync.Mutex)}
	if err := s.applySchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) applySchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return util.NewStorageError("schema", err)
	}
	return nil
}

// lockProject returns the write mutex for a project, creating it on first
// use. Mutexes are never removed; the set of projects is small.
func (s *Store) lockProject(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[projectID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[projectID] = m
	}
	return m
}

// txn runs fn inside a transaction, rolling back on error. Constraint
// violations surface as ValidationError so no partial write escapes.
func (s *Store) txn(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return util.NewStorageError("begin", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return util.NewStorageError("commit", err)
	}
	return nil
}
