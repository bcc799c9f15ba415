// Package backend opens the catalog named by configuration.
package backend

import (
	"context"
	"fmt"

	"examist/internal/catalog"
	"examist/internal/catalog/httpapi"
	"examist/internal/catalog/memory"
	"examist/internal/catalog/postgres"
	"examist/internal/catalog/sqlcat"
	"examist/internal/catalog/sqlite"
	"examist/internal/config"
)

// Backend is an opened catalog. Close releases its database, if any.
type Backend struct {
	catalog.Authenticator
	Driver string
	close  func() error
}

// Close releases the backend.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open builds the backend for cfg.Driver. With cfg.Seed the demo archive is
// loaded into local backends and its documents into docs.Store.
func Open(ctx context.Context, cfg config.Catalog, docs catalog.Documents) (*Backend, error) {
	ds := catalog.Dataset{}
	if cfg.Seed {
		ds = catalog.Demo()
	}
	if cfg.Seed && cfg.Driver != "http" && docs.Store != nil {
		if err := catalog.SeedDocuments(ctx, docs.Store, ds); err != nil {
			return nil, err
		}
	}

	switch cfg.Driver {
	case "memory", "":
		return &Backend{Authenticator: memory.New(ds, memory.WithDocuments(docs)), Driver: "memory"}, nil
	case "sqlite":
		c, err := sqlite.Open(ctx, cfg.SQLitePath, sqlcat.WithDocuments(docs))
		if err != nil {
			return nil, err
		}
		return seeded(ctx, c, ds, "sqlite")
	case "postgres":
		c, err := postgres.Open(ctx, cfg.PostgresDSN, sqlcat.WithDocuments(docs))
		if err != nil {
			return nil, err
		}
		return seeded(ctx, c, ds, "postgres")
	case "http":
		c, err := httpapi.New(cfg.BaseURL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return &Backend{Authenticator: c, Driver: "http"}, nil
	default:
		return nil, fmt.Errorf("unknown catalog driver %s", cfg.Driver)
	}
}

func seeded(ctx context.Context, c *sqlcat.Catalog, ds catalog.Dataset, driver string) (*Backend, error) {
	if err := c.Seed(ctx, ds); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &Backend{Authenticator: c, Driver: driver, close: c.Close}, nil
}
