// Package sqlite maps doc-parts onto SQLite tables.
//
// Every doc-part is a table named "<schema>.<table>" with did, rid, pid and
// seq followed by one typed column per field or scalar. The metadata snapshot
// lives in the torodb_* tables and its version in PRAGMA user_version, so a
// commit updates schema, rows and lastRid in one SQLite transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/kailas-cloud/docrel/internal/backend"
)

// busyTimeout is the time SQLite waits on a locked database, in milliseconds.
const busyTimeout = 10000

// Backend implements the document backend on SQLite.
type Backend struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and installs the metadata tables.
func Open(ctx context.Context, path string) (*Backend, error) {
	if path == "" {
		return nil, errors.New("open sqlite: path is empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Per-connection pragmas must apply to every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping sqlite: %w", err), db.Close())
	}
	if err := applyPragmas(ctx, db); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	if err := createMetaTables(ctx, db); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return &Backend{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		PRAGMA busy_timeout = %d;
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = FULL;
		PRAGMA cache_size = -20000;
		PRAGMA temp_store = MEMORY;
	`, busyTimeout))
	if err != nil {
		return fmt.Errorf("apply pragmas: %w", err)
	}
	return nil
}

func createMetaTables(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin meta txn: %w", err)
	}
	for _, stmt := range metaTables {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Join(fmt.Errorf("create meta tables: %w", err), tx.Rollback())
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit meta txn: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close releases the connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Begin starts a SQLite transaction.
func (b *Backend) Begin(ctx context.Context) (backend.Tx, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin txn: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// version reads the snapshot version stored in user_version.
func (b *Backend) version(ctx context.Context) (uint64, error) {
	var v int64
	if err := b.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return uint64(v), nil
}
