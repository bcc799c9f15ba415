// Package sqlite opens the exam archive stored in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"examist/internal/catalog/sqlcat"
)

const defaultPath = "examist.db"

// Open creates the database file and its tables if needed and returns the
// archive catalog.
func Open(ctx context.Context, path string, opts ...sqlcat.Option) (*sqlcat.Catalog, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := sqlcat.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlcat.New(db, sqlcat.SQLite, opts...), nil
}
