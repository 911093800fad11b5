// Package store is the backing store adapter: it owns the single *sql.DB
// connection for a container, creates the chunked-VFS schema exactly once,
// and exposes that connection (DB) plus a transaction helper (WithTx); the
// chunk package writes its own SQL against them. It never interprets a path
// or a chunk boundary - that is chunk's job.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" database/sql driver
	"github.com/pkg/errors"

	"github.com/christopher22/matryoshka/internal/mlog"
	"github.com/christopher22/matryoshka/merrors"
)

// MemorySentinel is the container path that requests an ephemeral,
// in-memory container whose lifetime equals the owning FS handle.
const MemorySentinel = ":memory:"

// schema creates the two-relation layout backing every container: one row
// per file, one row per chunk. It is safe to execute against an
// already-initialized container: every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS files (
	id         INTEGER PRIMARY KEY,
	path       TEXT NOT NULL UNIQUE,
	chunk_size INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	ordinal INTEGER NOT NULL,
	payload BLOB NOT NULL,
	PRIMARY KEY (file_id, ordinal)
);
`

// Store wraps the database/sql connection for one container.
type Store struct {
	db *sql.DB
}

// Open ensures a container exists at path (or mints a fresh in-memory one
// for MemorySentinel) and that its schema is present.
func Open(path string) (*Store, error) {
	dsn, singleConn := dsnFor(path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, merrors.Wrapf(merrors.Storage, err, "open container %q", path)
	}
	if singleConn {
		// A private (non-shared-cache) :memory: database exists only on
		// the connection that created it; pooling a second connection
		// would silently hand back an empty database. Pinning the pool
		// to one connection keeps "one Store == one container" true even
		// though we additionally use a shared-cache URI for belt and
		// braces across repeated in-process Opens of ":memory:".
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, merrors.Wrapf(merrors.Storage, err, "enable foreign keys for %q", path)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, merrors.Wrapf(merrors.Storage, err, "create schema for %q", path)
	}

	mlog.Debugf("Open", path, "container ready (dsn=%s)", dsn)
	return &Store{db: db}, nil
}

// dsnFor translates a container path into a database/sql DSN for the
// sqlite3 driver, and reports whether the pool must be limited to a single
// connection.
func dsnFor(path string) (dsn string, singleConn bool) {
	if path != MemorySentinel {
		return fmt.Sprintf("file:%s?_foreign_keys=on", path), false
	}
	// Each Open(":memory:") must be an independent container, so the
	// shared-cache name is unique per call.
	name := "matryoshka-" + uuid.NewString()
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name), true
}

// Close closes the backing connection. Closing the Store closes the
// container; for an in-memory container this discards all state.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return merrors.Wrap(merrors.Storage, err, "close container")
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error fn returns.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return merrors.Wrap(merrors.Storage, err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return merrors.Wrapf(merrors.Storage, rbErr, "rollback after %v", err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return merrors.Wrap(merrors.Storage, err, "commit transaction")
	}
	return nil
}

// DB exposes the raw connection for the operations (Open, Pull, Size, Find,
// Delete) that do not need transactional wrapping.
func (s *Store) DB() *sql.DB { return s.db }
