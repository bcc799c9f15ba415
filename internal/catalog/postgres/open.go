// Package postgres opens the exam archive stored in Postgres through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"examist/internal/catalog/sqlcat"
)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/examist?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Open connects to dsn (falls back to defaultDSN), applies the schema and
// returns the archive catalog.
func Open(ctx context.Context, dsn string, opts ...sqlcat.Option) (*sqlcat.Catalog, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := sqlcat.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlcat.New(db, sqlcat.Postgres, opts...), nil
}
