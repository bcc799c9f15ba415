package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"examist/internal/catalog"
	"examist/internal/catalog/catalogtest"
	"examist/internal/catalog/sqlcat"
)

func TestCatalogContract(t *testing.T) {
	dsn := os.Getenv("EXAMIST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("EXAMIST_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	c, err := Open(ctx, dsn, sqlcat.WithDocuments(catalogtest.Documents(t)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	for _, table := range []string{"sessions", "comments", "user_courses", "users", "questions", "papers", "courses"} {
		if _, err := c.DB().ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
	if err := c.Seed(ctx, catalog.Demo()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	catalogtest.Run(t, c)
}

func TestOpenReportsDriverErrors(t *testing.T) {
	orig := sqlOpen
	t.Cleanup(func() { sqlOpen = orig })
	boom := errors.New("boom")
	sqlOpen = func(string, string) (*sql.DB, error) { return nil, boom }
	if _, err := Open(context.Background(), ""); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}
